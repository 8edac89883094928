package contact

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/utils"
)

// DefaultFricCoeff is used when a descriptor omits the friction coefficient.
const DefaultFricCoeff = 0.5

// Descriptor is the declarative form of a contact constraint.
type Descriptor struct {
	Type         string                  `json:"type"`
	Name         string                  `json:"name"`
	FricCoeff    float64                 `json:"fricCoeff"`
	VerticesName string                  `json:"verticesName"`
	Vertices     [][3]float64            `json:"vertices"`
	Pose         *spatialmath.PoseConfig `json:"pose"`
}

// VerticesConfig lists the named vertex sets referenced by descriptors.
type VerticesConfig struct {
	Surface map[string][][3]float64             `json:"surfaceVerticesList"`
	Grasp   map[string][]spatialmath.PoseConfig `json:"graspVerticesList"`
}

// Validate ensures all parts of the config are valid.
func (cfg *VerticesConfig) Validate(path string) error {
	for name, vertices := range cfg.Surface {
		if len(vertices) == 0 {
			return goutils.NewConfigValidationError(fmt.Sprintf("%s.surfaceVerticesList.%s", path, name),
				errors.New("vertex list must not be empty"))
		}
	}
	for name, vertices := range cfg.Grasp {
		if len(vertices) == 0 {
			return goutils.NewConfigValidationError(fmt.Sprintf("%s.graspVerticesList.%s", path, name),
				errors.New("vertex list must not be empty"))
		}
	}
	return nil
}

// Factory builds constraints from descriptors, resolving vertex sets by name.
type Factory struct {
	surfaceVertices map[string][]r3.Vector
	graspVertices   map[string][]spatialmath.Pose
}

// NewFactory returns a factory using the named vertex sets of cfg.
func NewFactory(cfg VerticesConfig) *Factory {
	f := &Factory{
		surfaceVertices: map[string][]r3.Vector{},
		graspVertices:   map[string][]spatialmath.Pose{},
	}
	for name, vertices := range cfg.Surface {
		for _, v := range vertices {
			f.surfaceVertices[name] = append(f.surfaceVertices[name], spatialmath.VectorFromArray(v))
		}
	}
	for name, poses := range cfg.Grasp {
		for _, p := range poses {
			f.graspVertices[name] = append(f.graspVertices[name], p.Pose())
		}
	}
	return f
}

// Make builds the constraint described by d.
func (f *Factory) Make(d Descriptor) (Constraint, error) {
	if d.Name == "" {
		return nil, errors.New("contact constraint requires a name")
	}
	pose := spatialmath.NewZeroPose()
	if d.Pose != nil {
		pose = d.Pose.Pose()
	}
	fricCoeff := d.FricCoeff
	if fricCoeff == 0 {
		fricCoeff = DefaultFricCoeff
	}
	if fricCoeff < 0 {
		return nil, errors.Errorf("contact %q has a negative friction coefficient %v", d.Name, fricCoeff)
	}
	verticesName := d.VerticesName
	if verticesName == "" {
		verticesName = d.Name
	}

	switch d.Type {
	case TypeSurface:
		var vertices []r3.Vector
		if len(d.Vertices) > 0 {
			for _, v := range d.Vertices {
				vertices = append(vertices, spatialmath.VectorFromArray(v))
			}
		} else {
			var ok bool
			if vertices, ok = f.surfaceVertices[verticesName]; !ok {
				return nil, errors.Errorf("surface vertices %q of contact %q are not defined", verticesName, d.Name)
			}
		}
		return NewSurface(d.Name, fricCoeff, vertices, pose), nil
	case TypeGrasp:
		vertices, ok := f.graspVertices[verticesName]
		if !ok {
			return nil, errors.Errorf("grasp vertices %q of contact %q are not defined", verticesName, d.Name)
		}
		return NewGrasp(d.Name, fricCoeff, vertices, pose), nil
	case TypeEmpty:
		return NewEmpty(d.Name), nil
	default:
		return nil, errors.Errorf("unknown contact type %q", d.Type)
	}
}

// Decode builds a constraint from a generic document. A nil document means no contact and returns
// a nil constraint.
func (f *Factory) Decode(doc utils.Document) (Constraint, error) {
	if doc == nil {
		return nil, nil
	}
	var d Descriptor
	if err := utils.DecodeDocument(doc, &d); err != nil {
		return nil, errors.Wrap(err, "decoding contact constraint")
	}
	return f.Make(d)
}
