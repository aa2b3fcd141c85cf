package scene

import (
	"encoding/json"
	"strings"
)

// Shape tags recognised on structured values.
const (
	TagVector3   = "Vector3"
	TagTransform = "Transform"
	TagOpaque    = "Opaque"
)

// ValueOf classifies a dynamically typed value (typically decoded JSON) into
// a PropertyValue. The first matching rule wins:
//
//	map tagged "Vector3"   -> Vector3, missing components default to 0
//	map tagged "Transform" -> Transform, origin defaults to (0, 0, 0)
//	any other map          -> Structured
//	int / float            -> Number
//	string                 -> Text
//	bool                   -> Boolean
//
// Any other shape reports ok == false and should be dropped by the caller.
func ValueOf(raw any) (PropertyValue, bool) {
	switch v := raw.(type) {
	case PropertyValue:
		return v, true
	case map[string]any:
		return structuredValue(v), true
	case float64:
		return Number(v), true
	case float32:
		return Number(v), true
	case int:
		return Number(v), true
	case int32:
		return Number(v), true
	case int64:
		return Number(v), true
	case uint:
		return Number(v), true
	case uint32:
		return Number(v), true
	case uint64:
		return Number(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return Number(f), true
	case string:
		return Text(v), true
	case bool:
		return Boolean(v), true
	default:
		return nil, false
	}
}

func structuredValue(m map[string]any) PropertyValue {
	switch tagOf(m) {
	case TagVector3:
		return vectorOf(m)
	case TagTransform:
		origin := Vector3{}
		if o, ok := m["origin"].(map[string]any); ok {
			origin = vectorOf(o)
		}
		return Transform{Origin: origin}
	case TagOpaque:
		typeName, _ := m["type_name"].(string)
		raw, _ := m["raw"].(string)
		return Opaque{TypeName: typeName, Raw: raw}
	}
	return Structured(m)
}

func tagOf(m map[string]any) string {
	tag, _ := m["type"].(string)
	return strings.TrimSpace(tag)
}

func vectorOf(m map[string]any) Vector3 {
	return Vector3{
		X: numberOr(m["x"], 0),
		Y: numberOr(m["y"], 0),
		Z: numberOr(m["z"], 0),
	}
}

func numberOr(raw any, fallback float64) float64 {
	if raw == nil {
		return fallback
	}
	if n, ok := ValueOf(raw); ok {
		if num, ok := n.(Number); ok {
			return float64(num)
		}
	}
	return fallback
}

// Raw converts a PropertyValue back into the dynamic shape ValueOf accepts.
func Raw(v PropertyValue) any {
	switch val := v.(type) {
	case Number:
		return float64(val)
	case Text:
		return string(val)
	case Boolean:
		return bool(val)
	case Vector3:
		return map[string]any{"type": TagVector3, "x": val.X, "y": val.Y, "z": val.Z}
	case Transform:
		return map[string]any{
			"type":   TagTransform,
			"origin": map[string]any{"type": TagVector3, "x": val.Origin.X, "y": val.Origin.Y, "z": val.Origin.Z},
		}
	case Structured:
		return map[string]any(val)
	case Opaque:
		return map[string]any{"type": TagOpaque, "type_name": val.TypeName, "raw": val.Raw}
	default:
		return nil
	}
}
