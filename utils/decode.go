package utils

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Document is a generic key/value tree as produced by YAML or JSON unmarshaling.
type Document = map[string]interface{}

// DecodeDocument decodes doc onto out, which should already hold default values. Field names
// follow the json tags. Unknown keys are rejected. Vectors may be written as a three element list or
// as a single number applied to every axis.
func DecodeDocument(doc interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       vectorHook,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "creating decoder")
	}
	return decoder.Decode(doc)
}

var vectorType = reflect.TypeOf(r3.Vector{})

func vectorHook(_, to reflect.Type, data interface{}) (interface{}, error) {
	if to != vectorType {
		return data, nil
	}
	switch v := data.(type) {
	case []interface{}:
		if len(v) != 3 {
			return nil, errors.Errorf("vector must have 3 elements, got %d", len(v))
		}
		var arr [3]float64
		for i, e := range v {
			f, err := cast.ToFloat64E(e)
			if err != nil {
				return nil, errors.Wrapf(err, "vector element %d", i)
			}
			arr[i] = f
		}
		return r3.Vector{X: arr[0], Y: arr[1], Z: arr[2]}, nil
	case []float64:
		if len(v) != 3 {
			return nil, errors.Errorf("vector must have 3 elements, got %d", len(v))
		}
		return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
	case int, int64, float64:
		f := cast.ToFloat64(v)
		return r3.Vector{X: f, Y: f, Z: f}, nil
	default:
		return data, nil
	}
}

// AssertType returns from as a T, or an error naming both types. It is used to walk decoded
// document trees.
func AssertType[T any](from interface{}) (T, error) {
	if v, ok := from.(T); ok {
		return v, nil
	}
	var zero T
	return zero, NewUnexpectedTypeError[T](from)
}

// CopyDocument returns a deep copy of doc.
func CopyDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	return copyNode(doc).(Document)
}

func copyNode(v interface{}) interface{} {
	switch node := v.(type) {
	case Document:
		out := make(Document, len(node))
		for k, val := range node {
			out[k] = copyNode(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, val := range node {
			out[i] = copyNode(val)
		}
		return out
	default:
		return v
	}
}

// NormalizeDocument converts every map in v to a Document so the tree can be walked with string
// keys. Non-string keys are formatted with fmt.
func NormalizeDocument(v interface{}) interface{} {
	switch node := v.(type) {
	case map[interface{}]interface{}:
		out := make(Document, len(node))
		for k, val := range node {
			out[fmt.Sprint(k)] = NormalizeDocument(val)
		}
		return out
	case Document:
		out := make(Document, len(node))
		for k, val := range node {
			out[k] = NormalizeDocument(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, val := range node {
			out[i] = NormalizeDocument(val)
		}
		return out
	default:
		return v
	}
}
