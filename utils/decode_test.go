package utils

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/isri-aist/MultiContactController/logging"
)

type decodeTarget struct {
	Ratio  float64    `json:"ratio"`
	Offset [3]float64 `json:"offset"`
	Name   string     `json:"name"`
}

func TestDecodeDocument(t *testing.T) {
	out := decodeTarget{Ratio: 0.2, Name: "default"}
	err := DecodeDocument(Document{"offset": []interface{}{0, 0, 0.1}, "ratio": "0.3"}, &out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Ratio, test.ShouldEqual, 0.3)
	test.That(t, out.Offset, test.ShouldResemble, [3]float64{0, 0, 0.1})
	test.That(t, out.Name, test.ShouldEqual, "default")

	err = DecodeDocument(Document{"unknown": 1}, &out)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeVector(t *testing.T) {
	var out struct {
		Pos  r3.Vector `json:"pos"`
		Gain r3.Vector `json:"gain"`
	}
	err := DecodeDocument(Document{"pos": []interface{}{1, 2.5, -3}, "gain": 10}, &out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Pos, test.ShouldResemble, r3.Vector{X: 1, Y: 2.5, Z: -3})
	test.That(t, out.Gain, test.ShouldResemble, r3.Vector{X: 10, Y: 10, Z: 10})

	err = DecodeDocument(Document{"pos": []interface{}{1, 2}}, &out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "3 elements")
}

func TestCopyDocument(t *testing.T) {
	orig := Document{"nested": Document{"list": []interface{}{1, 2}}}
	cp := CopyDocument(orig)
	cp["nested"].(Document)["list"].([]interface{})[0] = 5
	test.That(t, orig["nested"].(Document)["list"].([]interface{})[0], test.ShouldEqual, 1)
	test.That(t, CopyDocument(nil), test.ShouldBeNil)
}

func TestNormalizeDocument(t *testing.T) {
	in := map[interface{}]interface{}{"a": map[interface{}]interface{}{"b": 1}}
	out, ok := NormalizeDocument(in).(Document)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, out["a"].(Document)["b"], test.ShouldEqual, 1)
}

func TestAssertType(t *testing.T) {
	v, err := AssertType[string]("x")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, "x")
	_, err = AssertType[string](1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(2, 0, 1), test.ShouldEqual, 1)
	test.That(t, Clamp(-1, 1e-8, 1), test.ShouldEqual, 1e-8)
	test.That(t, Clamp(0.5, 0, 1), test.ShouldEqual, 0.5)
}

func TestFatalf(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	defer func() {
		r := recover()
		test.That(t, r, test.ShouldNotBeNil)
		test.That(t, r.(error).Error(), test.ShouldEqual, "broken invariant 3")
		test.That(t, logs.FilterMessage("broken invariant 3").Len(), test.ShouldEqual, 1)
	}()
	Fatalf(logger, "broken invariant %d", 3)
}
