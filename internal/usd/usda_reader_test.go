package usd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authoredLayer = `#usda 1.0
(
    "Exported from a DCC tool"
    defaultPrim = "World"
    metersPerUnit = 0.01
    upAxis = "Y"
    subLayers = [@./base.usda@]
)

# comment line
def Xform "World" (
    kind = "assembly"
    prepend apiSchemas = ["GeomModelAPI"]
)
{
    double3 xformOp:translate = (0, -1.5e2, inf)
    uniform token[] xformOpOrder = ["xformOp:translate"]
    float radius.timeSamples = {
        0: 1,
        10: 2,
    }
    rel material:binding = </Looks/Red>
    custom string note = """multi
line"""
    double blocked = None

    variantSet "shading" = {
        "red" {
            def Sphere "Ball" {}
        }
    }

    def Mesh "Cube" (
        doc = 'unit cube'
    )
    {
        int faces = 6;
        matrix4d xformOp:transform = ( (1, 0, 0, 0), (0, 1, 0, 0), (0, 0, 1, 0), (4, 5, 6, 1) )
    }
}

over "Looks"
{
    def Material "Red"
    {
    }
}
`

func TestParseLayer(t *testing.T) {
	s, err := ParseLayer("authored.usda", []byte(authoredLayer))
	require.NoError(t, err)

	t.Run("layer metadata", func(t *testing.T) {
		assert.Equal(t, "World", s.DefaultPrim())
		up, ok := s.Metadata("upAxis")
		require.True(t, ok)
		assert.Equal(t, `"Y"`, up)
		doc, ok := s.Metadata("doc")
		require.True(t, ok)
		assert.Equal(t, `"Exported from a DCC tool"`, doc)
		sub, ok := s.Metadata("subLayers")
		require.True(t, ok)
		assert.Equal(t, "[@./base.usda@]", sub)
	})

	t.Run("attributes", func(t *testing.T) {
		world, err := s.GetPrim("/World")
		require.NoError(t, err)
		assert.Equal(t, "Xform", world.TypeName())

		tr, ok := world.Attribute("xformOp:translate")
		require.True(t, ok)
		v, ok := tr.Get()
		require.True(t, ok)
		vec := v.(mgl64.Vec3)
		assert.Equal(t, -150.0, vec[1])
		assert.True(t, vec[2] > 1e308)

		order, ok := world.Attribute("xformOpOrder")
		require.True(t, ok)
		assert.True(t, order.IsUniform())
		assert.True(t, order.TypeName().IsArray())
		v, _ = order.Get()
		assert.Equal(t, RawValue{Text: `["xformOp:translate"]`}, v)

		radius, ok := world.Attribute("radius")
		require.True(t, ok)
		assert.False(t, radius.HasValue())

		note, ok := world.Attribute("note")
		require.True(t, ok)
		assert.True(t, note.IsCustom())
		v, _ = note.Get()
		assert.Equal(t, "multi\nline", v)

		blocked, ok := world.Attribute("blocked")
		require.True(t, ok)
		assert.False(t, blocked.HasValue())

		_, ok = world.Attribute("material:binding")
		assert.False(t, ok)
	})

	t.Run("children", func(t *testing.T) {
		cube, err := s.GetPrim("/World/Cube")
		require.NoError(t, err)
		faces, ok := cube.Attribute("faces")
		require.True(t, ok)
		v, _ := faces.Get()
		assert.Equal(t, 6, v)

		m, ok := cube.Attribute("xformOp:transform")
		require.True(t, ok)
		v, _ = m.Get()
		assert.Equal(t, mgl64.Translate3D(4, 5, 6), v)

		_, err = s.GetPrim("/World/Ball")
		assert.ErrorIs(t, err, ErrPrimNotFound)
	})

	t.Run("traversal skips overs", func(t *testing.T) {
		var paths []Path
		for _, p := range s.Traverse() {
			paths = append(paths, p.Path())
		}
		assert.Equal(t, []Path{"/World", "/World/Cube"}, paths)

		red, err := s.GetPrim("/Looks/Red")
		require.NoError(t, err)
		assert.False(t, red.IsDefined())
	})
}

const referencingLayer = `#usda 1.0
(
    "100% done"
    defaultPrim = "Set"
)

def Xform "Set" (
    prepend references = @./props/chair.usda@</Chair>
)
{
    def "Lamp" (
        references = [@./props/lamp.usda@</Lamp> (offset = 10; scale = 2), </Set>, @./bulb.usda@]
        payload = @./heavy.usda@</Heavy>
    )
    {
        float intensity = 3
    }
}
`

func TestParseLayer_References(t *testing.T) {
	s, err := ParseLayer("set.usda", []byte(referencingLayer))
	require.NoError(t, err)

	lamp, err := s.GetPrim("/Set/Lamp")
	require.NoError(t, err)
	intensity, ok := lamp.Attribute("intensity")
	require.True(t, ok)
	v, _ := intensity.Get()
	assert.Equal(t, float32(3), v)

	data, err := s.MarshalText()
	require.NoError(t, err)
	assert.Contains(t, string(data), "    \"100% done\"\n")

	again, err := ParseLayer("again.usda", data)
	require.NoError(t, err)
	doc, ok := again.Metadata("doc")
	require.True(t, ok)
	assert.Equal(t, `"100% done"`, doc)
}

func TestParseLayer_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{name: "missing header", src: "def Xform \"A\" {}", line: 1},
		{name: "unterminated prim", src: "#usda 1.0\ndef Xform \"A\"\n{\n", line: 4},
		{name: "invalid prim name", src: "#usda 1.0\n\ndef Xform \"bad name\" {}", line: 3},
		{name: "type mismatch", src: "#usda 1.0\ndef \"A\" {\n    int n = \"x\"\n}", line: 3},
		{name: "unterminated string", src: "#usda 1.0\ndef \"A\" {\n    string s = \"open\n}", line: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLayer("bad.usda", []byte(tt.src))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "bad.usda", perr.File)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}
