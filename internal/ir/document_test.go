package ir

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tscnusd/internal/scene"
)

const twoNodeDoc = `{
  "version": "1",
  "nodes": [
    {"name": "Root", "type": "Node3D", "parent": null, "properties": {}},
    {"name": "Child", "type": "Mesh", "parent": "Root", "properties": {
      "visible": true,
      "mass": 2,
      "offset": {"type": "Vector3", "x": 1, "z": 3},
      "xform": {"type": "Transform"},
      "meta": {"layer": 1},
      "tags": ["a", "b"],
      "nothing": null
    }}
  ]
}`

func TestDecode(t *testing.T) {
	tree, dropped, err := Decode([]byte(twoNodeDoc))
	require.NoError(t, err)
	require.Equal(t, 2, tree.Len())

	assert.True(t, tree.Nodes[0].IsRoot())
	child := tree.Nodes[1]
	assert.Equal(t, "Root", child.Parent)
	assert.Equal(t, scene.Boolean(true), child.Properties["visible"])
	assert.Equal(t, scene.Number(2), child.Properties["mass"])
	assert.Equal(t, scene.Vector3{X: 1, Y: 0, Z: 3}, child.Properties["offset"])
	assert.Equal(t, scene.Transform{}, child.Properties["xform"])
	assert.Equal(t, scene.Structured{"layer": 1.0}, child.Properties["meta"])

	assert.Equal(t, []DroppedValue{
		{Node: "Child", Property: "nothing"},
		{Node: "Child", Property: "tags"},
	}, dropped)

	resolved, err := tree.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/Root/Child", resolved[1].Path)
}

func TestDecode_RejectsMalformedDocuments(t *testing.T) {
	tests := map[string]string{
		"not json":         `{"version": "1", "nodes": [`,
		"wrong version":    `{"version": "2", "nodes": []}`,
		"missing nodes":    `{"version": "1"}`,
		"nameless node":    `{"version": "1", "nodes": [{"type": "Node3D"}]}`,
		"empty name":       `{"version": "1", "nodes": [{"name": ""}]}`,
		"unknown field":    `{"version": "1", "nodes": [{"name": "A", "children": []}]}`,
		"numeric parent":   `{"version": "1", "nodes": [{"name": "A", "parent": 3}]}`,
		"array properties": `{"version": "1", "nodes": [{"name": "A", "properties": []}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tree := scene.NewTree(
		scene.GenericNode{Name: "Root", TypeName: "Node3D", Parent: scene.NoParent},
		scene.GenericNode{
			Name:     "Child",
			TypeName: "Mesh",
			Parent:   "/Root",
			Properties: map[string]scene.PropertyValue{
				"visible": scene.Boolean(true),
				"label":   scene.Text("x"),
				"mass":    scene.Number(0.5),
				"offset":  scene.Vector3{X: 1, Y: 2, Z: 3},
				"xform":   scene.Transform{Origin: scene.Vector3{X: 4}},
				"color":   scene.Opaque{TypeName: "color3f", Raw: "(1, 0, 0)"},
			},
		},
	)

	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, WriteFile(path, tree))

	back, dropped, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	require.Equal(t, 2, back.Len())
	assert.Equal(t, "", back.Nodes[0].Parent)
	assert.Equal(t, "/Root", back.Nodes[1].Parent)
	assert.Equal(t, tree.Nodes[1].Properties, back.Nodes[1].Properties)
}

func TestEncode_UnresolvableTree(t *testing.T) {
	tree := scene.NewTree(scene.GenericNode{Name: "A", Parent: "Missing"})
	_, err := Encode(tree)
	var missing *scene.MissingParentError
	assert.ErrorAs(t, err, &missing)
}
