package scene

import (
	"fmt"
	"sort"
)

// Kind names the shape of a PropertyValue.
type Kind string

const (
	KindNumber     Kind = "number"
	KindText       Kind = "text"
	KindBoolean    Kind = "boolean"
	KindVector3    Kind = "vector3"
	KindTransform  Kind = "transform"
	KindStructured Kind = "structured"
	KindOpaque     Kind = "opaque"
)

// PropertyValue is the closed set of property shapes a GenericNode can carry.
type PropertyValue interface {
	Kind() Kind
	propertyValue() // marker method restricting implementations to this package
}

// Number is a numeric property. Integers and floats both land here.
type Number float64

func (Number) Kind() Kind     { return KindNumber }
func (Number) propertyValue() {}

// Text is a string property.
type Text string

func (Text) Kind() Kind     { return KindText }
func (Text) propertyValue() {}

// Boolean is a boolean property.
type Boolean bool

func (Boolean) Kind() Kind     { return KindBoolean }
func (Boolean) propertyValue() {}

// Vector3 is a three-component vector property.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (Vector3) Kind() Kind     { return KindVector3 }
func (Vector3) propertyValue() {}

// Transform is a placement. Only the origin survives conversion; rotation
// and scale have no slot in the generic model.
type Transform struct {
	Origin Vector3 `json:"origin"`
}

func (Transform) Kind() Kind     { return KindTransform }
func (Transform) propertyValue() {}

// Structured is any key-value shape that is neither a Vector3 nor a
// Transform. It is carried through the tree but never mapped to an attribute.
type Structured map[string]any

func (Structured) Kind() Kind     { return KindStructured }
func (Structured) propertyValue() {}

// Keys returns the structured keys in sorted order.
func (s Structured) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Opaque is a value read back from a scene graph without coercion into one
// of the typed shapes above. TypeName is the source attribute type and Raw
// its textual form.
type Opaque struct {
	TypeName string `json:"type_name"`
	Raw      string `json:"raw"`
}

func (Opaque) Kind() Kind     { return KindOpaque }
func (Opaque) propertyValue() {}

func (o Opaque) String() string { return o.Raw }

// Describe renders a value for logs and inspection output.
func Describe(v PropertyValue) string {
	switch val := v.(type) {
	case Number:
		return fmt.Sprintf("%g", float64(val))
	case Text:
		return fmt.Sprintf("%q", string(val))
	case Boolean:
		return fmt.Sprintf("%t", bool(val))
	case Vector3:
		return fmt.Sprintf("Vector3(%g, %g, %g)", val.X, val.Y, val.Z)
	case Transform:
		return fmt.Sprintf("Transform(origin=(%g, %g, %g))", val.Origin.X, val.Origin.Y, val.Origin.Z)
	case Structured:
		return fmt.Sprintf("structured%v", val.Keys())
	case Opaque:
		return fmt.Sprintf("%s %s", val.TypeName, val.Raw)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", val)
	}
}
