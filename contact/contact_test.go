package contact

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/utils"
)

func TestLimbGroup(t *testing.T) {
	test.That(t, LimbFromName("LeftFoot").Group, test.ShouldEqual, GroupFoot)
	test.That(t, LimbFromName("RightHand").Group, test.ShouldEqual, GroupHand)
	test.That(t, LimbFromName("LeftKnee").Group, test.ShouldEqual, "")
	test.That(t, LimbFromName("lefthand").Group, test.ShouldEqual, "")
	test.That(t, NewLimb("LeftFoot", "Custom").Group, test.ShouldEqual, "Custom")

	byName := map[string]Limb{}
	byName[LimbFromName("LeftFoot").Name] = LimbFromName("LeftFoot")
	test.That(t, byName, test.ShouldContainKey, "LeftFoot")
}

func TestFrictionPyramid(t *testing.T) {
	ridges := FrictionPyramid(spatialmath.IdentityQuat(), 1, DefaultRidgeNum)
	test.That(t, ridges, test.ShouldHaveLength, 4)
	for _, r := range ridges {
		test.That(t, r.Norm(), test.ShouldAlmostEqual, 1)
		// 45 degree cone for unit friction
		test.That(t, r.Z, test.ShouldAlmostEqual, math.Sqrt(0.5))
	}

	flipped := FrictionPyramid(spatialmath.QuatFromRPY(r3.Vector{X: math.Pi}), 0.5, DefaultRidgeNum)
	for _, r := range flipped {
		test.That(t, r.Z, test.ShouldBeLessThan, 0)
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory(VerticesConfig{
		Surface: map[string][][3]float64{
			"LeftFoot": {{0.1, 0.05, 0}, {-0.1, 0.05, 0}, {-0.1, -0.05, 0}, {0.1, -0.05, 0}},
		},
		Grasp: map[string][]spatialmath.PoseConfig{
			"LeftHand": {{Translation: [3]float64{0, 0.02, 0}}, {Translation: [3]float64{0, -0.02, 0}}},
		},
	})

	c, err := f.Decode(utils.Document{
		"type": "Surface",
		"name": "LeftFoot",
		"pose": utils.Document{"translation": []interface{}{1.0, 0, 0}},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Type(), test.ShouldEqual, TypeSurface)
	test.That(t, c.FricCoeff(), test.ShouldEqual, DefaultFricCoeff)
	test.That(t, c.VertexWithRidgesList(), test.ShouldHaveLength, 4)
	test.That(t, c.VertexWithRidgesList()[0].Vertex.X, test.ShouldAlmostEqual, 1.1)

	g, err := f.Make(Descriptor{Type: TypeGrasp, Name: "LeftHand", FricCoeff: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.VertexWithRidgesList(), test.ShouldHaveLength, 2)

	e, err := f.Make(Descriptor{Type: TypeEmpty, Name: "LeftKnee"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.VertexWithRidgesList(), test.ShouldBeEmpty)

	none, err := f.Decode(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, none, test.ShouldBeNil)

	_, err = f.Make(Descriptor{Type: TypeSurface, Name: "RightFoot"})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = f.Make(Descriptor{Type: "Point", Name: "RightFoot"})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = f.Decode(utils.Document{"type": "Empty", "name": "x", "color": "red"})
	test.That(t, err, test.ShouldNotBeNil)
}
