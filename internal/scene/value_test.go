package scene

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want PropertyValue
	}{
		{"float", 1.5, Number(1.5)},
		{"int", 3, Number(3)},
		{"json number", json.Number("2.25"), Number(2.25)},
		{"string", "hello", Text("hello")},
		{"bool", true, Boolean(true)},
		{"vector3", map[string]any{"type": "Vector3", "x": 1.0, "y": 2.0, "z": 3.0}, Vector3{1, 2, 3}},
		{"vector3 defaults", map[string]any{"type": "Vector3", "y": 4.0}, Vector3{0, 4, 0}},
		{
			"transform",
			map[string]any{"type": "Transform", "origin": map[string]any{"type": "Vector3", "x": 5.0, "z": -1.0}},
			Transform{Origin: Vector3{5, 0, -1}},
		},
		{"transform default origin", map[string]any{"type": "Transform"}, Transform{}},
		{"untagged map", map[string]any{"r": 1.0}, Structured{"r": 1.0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ValueOf(tc.raw)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValueOf_Unsupported(t *testing.T) {
	for _, raw := range []any{nil, []any{1.0, 2.0}, struct{}{}} {
		_, ok := ValueOf(raw)
		assert.False(t, ok, "%T should not classify", raw)
	}
}

func TestRaw_Inverse(t *testing.T) {
	values := []PropertyValue{
		Number(2),
		Text("x"),
		Boolean(false),
		Vector3{1, 2, 3},
		Transform{Origin: Vector3{4, 5, 6}},
		Opaque{TypeName: "float3", Raw: "(1, 2, 3)"},
	}
	for _, v := range values {
		got, ok := ValueOf(Raw(v))
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestPropertyValue_Kind(t *testing.T) {
	tests := []struct {
		value PropertyValue
		want  Kind
	}{
		{Number(1), KindNumber},
		{Text("a"), KindText},
		{Boolean(true), KindBoolean},
		{Vector3{X: 1}, KindVector3},
		{Transform{}, KindTransform},
		{Structured{}, KindStructured},
		{Opaque{}, KindOpaque},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.value.Kind())
	}
}
