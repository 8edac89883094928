package contact

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/spatialmath"
)

// Contact types.
const (
	TypeSurface = "Surface"
	TypeGrasp   = "Grasp"
	TypeEmpty   = "Empty"
)

// DefaultRidgeNum is the number of edges of the linearized friction cone.
const DefaultRidgeNum = 4

// VertexWithRidges is a contact point together with the unit generators of its friction pyramid,
// both expressed in the world frame.
type VertexWithRidges struct {
	Vertex r3.Vector
	Ridges []r3.Vector
}

// Constraint is the geometric and frictional description of an established contact.
type Constraint interface {
	Name() string
	Type() string
	Pose() spatialmath.Pose
	FricCoeff() float64
	VertexWithRidgesList() []VertexWithRidges
}

type base struct {
	name      string
	pose      spatialmath.Pose
	fricCoeff float64
	vertices  []VertexWithRidges
}

func (b *base) Name() string                             { return b.name }
func (b *base) Pose() spatialmath.Pose                   { return b.pose }
func (b *base) FricCoeff() float64                       { return b.fricCoeff }
func (b *base) VertexWithRidgesList() []VertexWithRidges { return b.vertices }

// Surface is a planar contact whose friction cones share the surface normal (local +z).
type Surface struct {
	base
}

// NewSurface returns a surface contact with vertices given in the pose frame.
func NewSurface(name string, fricCoeff float64, localVertices []r3.Vector, pose spatialmath.Pose) *Surface {
	ridges := FrictionPyramid(pose.Orientation, fricCoeff, DefaultRidgeNum)
	s := &Surface{base{name: name, pose: pose, fricCoeff: fricCoeff}}
	for _, v := range localVertices {
		s.vertices = append(s.vertices, VertexWithRidges{Vertex: pose.Transform(v), Ridges: ridges})
	}
	return s
}

// Type returns TypeSurface.
func (s *Surface) Type() string { return TypeSurface }

// Grasp is a contact made of several oriented contact points, each with its own normal.
type Grasp struct {
	base
}

// NewGrasp returns a grasp contact with contact frames given in the pose frame.
func NewGrasp(name string, fricCoeff float64, localVertices []spatialmath.Pose, pose spatialmath.Pose) *Grasp {
	g := &Grasp{base{name: name, pose: pose, fricCoeff: fricCoeff}}
	for _, lv := range localVertices {
		world := spatialmath.Compose(pose, lv)
		g.vertices = append(g.vertices, VertexWithRidges{
			Vertex: world.Point,
			Ridges: FrictionPyramid(world.Orientation, fricCoeff, DefaultRidgeNum),
		})
	}
	return g
}

// Type returns TypeGrasp.
func (g *Grasp) Type() string { return TypeGrasp }

// Empty is a contact that transmits no force. It keeps a limb registered as in contact.
type Empty struct {
	base
}

// NewEmpty returns an empty contact.
func NewEmpty(name string) *Empty {
	return &Empty{base{name: name, pose: spatialmath.NewZeroPose()}}
}

// Type returns TypeEmpty.
func (e *Empty) Type() string { return TypeEmpty }

// FrictionPyramid returns ridgeNum unit generators of the linearized friction cone around the local
// +z axis of rotation.
func FrictionPyramid(rotation quat.Number, fricCoeff float64, ridgeNum int) []r3.Vector {
	ridges := make([]r3.Vector, 0, ridgeNum)
	for i := 0; i < ridgeNum; i++ {
		theta := 2 * math.Pi * float64(i) / float64(ridgeNum)
		local := r3.Vector{X: fricCoeff * math.Cos(theta), Y: fricCoeff * math.Sin(theta), Z: 1}.Normalize()
		ridges = append(ridges, spatialmath.RotateVector(rotation, local))
	}
	return ridges
}
