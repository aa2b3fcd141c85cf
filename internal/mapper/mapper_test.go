package mapper

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tscnusd/internal/scene"
	"tscnusd/internal/usd"
)

func twoNodeTree() *scene.Tree {
	return scene.NewTree(
		scene.GenericNode{Name: "Root", TypeName: "Node3D"},
		scene.GenericNode{
			Name:       "Child",
			TypeName:   "Mesh",
			Parent:     "Root",
			Properties: map[string]scene.PropertyValue{"visible": scene.Boolean(true)},
		},
	)
}

func primPaths(s *usd.Stage) []usd.Path {
	var out []usd.Path
	for _, p := range s.Traverse() {
		out = append(out, p.Path())
	}
	return out
}

func TestToStage_TwoNodeExample(t *testing.T) {
	stage := usd.NewStage()
	stats, err := ToStage(twoNodeTree(), stage, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Attributes)
	assert.Empty(t, stats.Dropped)
	assert.Equal(t, []usd.Path{"/Root", "/Root/Child"}, primPaths(stage))

	child, ok := stage.Prim("/Root/Child")
	require.True(t, ok)
	assert.Equal(t, "Mesh", child.TypeName())
	require.Len(t, child.Attributes(), 1)

	attr := child.Attributes()[0]
	assert.Equal(t, "visible", attr.Name())
	assert.Equal(t, usd.TypeBool, attr.TypeName())
	v, ok := attr.Get()
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestToStage_NodeCount(t *testing.T) {
	for _, n := range []int{0, 1, 5, 40} {
		t.Run(fmt.Sprintf("%d nodes", n), func(t *testing.T) {
			tree := scene.NewTree()
			for i := 0; i < n; i++ {
				node := scene.GenericNode{Name: fmt.Sprintf("N%d", i), TypeName: "Xform"}
				if i > 0 {
					node.Parent = fmt.Sprintf("N%d", (i-1)/2)
				}
				tree.Add(node)
			}

			stage := usd.NewStage()
			stats, err := ToStage(tree, stage, Options{})
			require.NoError(t, err)
			assert.Equal(t, n, stats.Nodes)
			assert.Len(t, stage.Traverse(), n)
		})
	}
}

func TestToStage_MissingParentDefinesNothing(t *testing.T) {
	tree := scene.NewTree(
		scene.GenericNode{Name: "Root"},
		scene.GenericNode{Name: "Orphan", Parent: "Ghost"},
	)

	stage := usd.NewStage()
	_, err := ToStage(tree, stage, Options{})

	var missing *scene.MissingParentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Orphan", missing.Node)
	assert.Empty(t, stage.Traverse())
}

func TestToStage_InvalidPrimName(t *testing.T) {
	tree := scene.NewTree(
		scene.GenericNode{Name: "Root"},
		scene.GenericNode{Name: "my node", Parent: "Root"},
	)

	stage := usd.NewStage()
	_, err := ToStage(tree, stage, Options{})

	var invalid *scene.InvalidNameError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "my node", invalid.Node)
	assert.Equal(t, 1, invalid.Index)
	assert.ErrorContains(t, err, `node "my node"`)
	assert.ErrorContains(t, err, "letters, digits and _")
	assert.Empty(t, stage.Traverse())
}

func TestToStage_Coercion(t *testing.T) {
	tree := scene.NewTree(scene.GenericNode{
		Name: "Root",
		Properties: map[string]scene.PropertyValue{
			"offset": scene.Vector3{X: 1, Y: 2, Z: 3},
			"xform":  scene.Transform{Origin: scene.Vector3{X: 4, Y: 5, Z: 6}},
			"mass":   scene.Number(1.5),
			"label":  scene.Text("crate"),
			"meta":   scene.Structured{"a": 1.0},
			"raw":    scene.Opaque{TypeName: "color3f", Raw: "(1, 0, 0)"},
			"bad:":   scene.Number(1),
		},
	})

	stage := usd.NewStage()
	stats, err := ToStage(tree, stage, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Attributes)

	root, ok := stage.Prim("/Root")
	require.True(t, ok)

	types := map[string]usd.ValueType{}
	for _, a := range root.Attributes() {
		types[a.Name()] = a.TypeName()
	}
	assert.Equal(t, map[string]usd.ValueType{
		"offset": usd.TypeFloat3,
		"xform":  usd.TypeMatrix4d,
		"mass":   usd.TypeFloat,
		"label":  usd.TypeString,
	}, types)

	offset, _ := root.Attribute("offset")
	v, _ := offset.Get()
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, v)

	xform, _ := root.Attribute("xform")
	assert.Equal(t, "( (1, 0, 0, 0), (0, 1, 0, 0), (0, 0, 1, 0), (4, 5, 6, 1) )", usd.FormatValue(mustGet(t, xform)))

	dropped := map[string]DroppedProperty{}
	for _, d := range stats.Dropped {
		dropped[d.Property] = d
	}
	require.Len(t, dropped, 3)
	assert.Equal(t, scene.KindStructured, dropped["meta"].Kind)
	assert.Equal(t, scene.KindOpaque, dropped["raw"].Kind)
	assert.Equal(t, "invalid property name", dropped["bad:"].Reason)
	assert.Equal(t, "/Root", dropped["meta"].Node)
}

func TestToStage_LayerMetadata(t *testing.T) {
	stage := usd.NewStage()
	_, err := ToStage(twoNodeTree(), stage, Options{DefaultPrim: AutoDefaultPrim, UpAxis: "Y"})
	require.NoError(t, err)

	assert.Equal(t, "Root", stage.DefaultPrim())
	up, ok := stage.Metadata("upAxis")
	require.True(t, ok)
	assert.Equal(t, `"Y"`, up)
}

func mustGet(t *testing.T, a *usd.Attribute) any {
	t.Helper()
	v, ok := a.Get()
	require.True(t, ok)
	return v
}

func TestFromStage_RoundTrip(t *testing.T) {
	tree := scene.NewTree(
		scene.GenericNode{
			Name:     "World",
			TypeName: "Xform",
			Properties: map[string]scene.PropertyValue{
				"mass":    scene.Number(2.5),
				"label":   scene.Text("hello"),
				"enabled": scene.Boolean(false),
			},
		},
		scene.GenericNode{Name: "Arm", TypeName: "Node3D", Parent: "World"},
		scene.GenericNode{Name: "Hand", TypeName: "Mesh", Parent: "Arm",
			Properties: map[string]scene.PropertyValue{"count": scene.Number(3)}},
		scene.GenericNode{Name: "Light", TypeName: "OmniLight3D"},
	)

	stage := usd.NewStage()
	_, err := ToStage(tree, stage, Options{})
	require.NoError(t, err)

	back := FromStage(stage)
	require.Equal(t, 4, back.Len())

	assert.Equal(t, "World", back.Nodes[0].Name)
	assert.Equal(t, "", back.Nodes[0].Parent)
	assert.Equal(t, tree.Nodes[0].Properties, back.Nodes[0].Properties)

	assert.Equal(t, "/World", back.Nodes[1].Parent)
	assert.Equal(t, "/World/Arm", back.Nodes[2].Parent)
	assert.Equal(t, scene.Number(3), back.Nodes[2].Properties["count"])
	assert.Equal(t, "OmniLight3D", back.Nodes[3].TypeName)
	assert.True(t, back.Nodes[3].IsRoot())

	resolved, err := back.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/World/Arm/Hand", resolved[2].Path)
}

func TestFromStage_VectorAndTransformAreLossy(t *testing.T) {
	tree := scene.NewTree(scene.GenericNode{
		Name: "Root",
		Properties: map[string]scene.PropertyValue{
			"offset": scene.Vector3{X: 1, Y: 2, Z: 3},
			"xform":  scene.Transform{Origin: scene.Vector3{X: 4, Y: 5, Z: 6}},
		},
	})

	stage := usd.NewStage()
	_, err := ToStage(tree, stage, Options{})
	require.NoError(t, err)

	back := FromStage(stage)
	require.Equal(t, 1, back.Len())
	props := back.Nodes[0].Properties

	assert.Equal(t, scene.Opaque{TypeName: "float3", Raw: "(1, 2, 3)"}, props["offset"])
	assert.Equal(t, scene.Opaque{
		TypeName: "matrix4d",
		Raw:      "( (1, 0, 0, 0), (0, 1, 0, 0), (0, 0, 1, 0), (4, 5, 6, 1) )",
	}, props["xform"])
	assert.NotEqual(t, tree.Nodes[0].Properties, props)
}

func TestFromStage_SkipsUnauthoredAndNumericRaw(t *testing.T) {
	stage := usd.NewStage()
	p, err := stage.DefinePrim("/Root", "Xform")
	require.NoError(t, err)
	_, err = p.CreateAttribute("empty", usd.TypeDouble)
	require.NoError(t, err)
	h, err := p.CreateAttribute("weight", usd.ValueType("half"))
	require.NoError(t, err)
	require.NoError(t, h.Set(usd.RawValue{Text: "0.5"}))
	tok, err := p.CreateAttribute("purpose", usd.TypeToken)
	require.NoError(t, err)
	require.NoError(t, tok.Set(usd.Token("render")))

	back := FromStage(stage)
	props := back.Nodes[0].Properties
	assert.NotContains(t, props, "empty")
	assert.Equal(t, scene.Number(0.5), props["weight"])
	assert.Equal(t, scene.Text("render"), props["purpose"])
}
