package usd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// ValueType is the scene description type name of an attribute.
type ValueType string

const (
	TypeBool     ValueType = "bool"
	TypeInt      ValueType = "int"
	TypeFloat    ValueType = "float"
	TypeDouble   ValueType = "double"
	TypeString   ValueType = "string"
	TypeToken    ValueType = "token"
	TypeFloat3   ValueType = "float3"
	TypeDouble3  ValueType = "double3"
	TypeMatrix4d ValueType = "matrix4d"
)

// IsArray reports whether t is an array type such as float3[].
func (t ValueType) IsArray() bool {
	return strings.HasSuffix(string(t), "[]")
}

// Typed reports whether values of t are held as native Go values. Values of
// every other type are kept as RawValue text.
func (t ValueType) Typed() bool {
	switch t {
	case TypeBool, TypeInt, TypeFloat, TypeDouble, TypeString, TypeToken,
		TypeFloat3, TypeDouble3, TypeMatrix4d:
		return true
	}
	return false
}

// Token is a token-typed value.
type Token string

// RawValue holds the textual form of a value whose type has no native Go
// representation here (arrays, colors, half, quaternions, ...).
type RawValue struct {
	Text string
}

func (r RawValue) String() string { return r.Text }

// checkValue verifies that v is the Go representation of t.
func checkValue(t ValueType, v any) error {
	ok := false
	switch t {
	case TypeBool:
		_, ok = v.(bool)
	case TypeInt:
		_, ok = v.(int)
	case TypeFloat:
		_, ok = v.(float32)
	case TypeDouble:
		_, ok = v.(float64)
	case TypeString:
		_, ok = v.(string)
	case TypeToken:
		_, ok = v.(Token)
	case TypeFloat3:
		_, ok = v.(mgl32.Vec3)
	case TypeDouble3:
		_, ok = v.(mgl64.Vec3)
	case TypeMatrix4d:
		_, ok = v.(mgl64.Mat4)
	default:
		_, ok = v.(RawValue)
	}
	if !ok {
		return fmt.Errorf("%w: %T is not a %s value", ErrTypeMismatch, v, t)
	}
	return nil
}

// FormatValue renders v in scene description text form.
func FormatValue(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(val)
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	case string:
		return Quote(val)
	case Token:
		return Quote(string(val))
	case mgl32.Vec3:
		return fmt.Sprintf("(%s, %s, %s)",
			formatFloat(float64(val[0]), 32), formatFloat(float64(val[1]), 32), formatFloat(float64(val[2]), 32))
	case mgl64.Vec3:
		return fmt.Sprintf("(%s, %s, %s)", formatFloat(val[0], 64), formatFloat(val[1], 64), formatFloat(val[2], 64))
	case mgl64.Mat4:
		return formatMatrix(val)
	case RawValue:
		return val.Text
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatMatrix writes rows in row-vector convention: the translation lands
// in the last row, which is the last column of the mgl (column-vector) matrix.
func formatMatrix(m mgl64.Mat4) string {
	rows := make([]string, 4)
	for i := 0; i < 4; i++ {
		c := m.Col(i)
		rows[i] = fmt.Sprintf("(%s, %s, %s, %s)",
			formatFloat(c[0], 64), formatFloat(c[1], 64), formatFloat(c[2], 64), formatFloat(c[3], 64))
	}
	return "( " + strings.Join(rows, ", ") + " )"
}

func formatFloat(f float64, bits int) string {
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// Quote renders s as a double-quoted string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
