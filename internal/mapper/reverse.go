package mapper

import (
	"strconv"

	"tscnusd/internal/scene"
	"tscnusd/internal/usd"
)

// numericRaw lists scalar types held as raw text by the backend that still
// read back as numbers.
var numericRaw = map[usd.ValueType]bool{
	"half":   true,
	"int64":  true,
	"uint":   true,
	"uint64": true,
	"uchar":  true,
}

// FromStage walks the defined prims of stage in depth-first pre-order and
// returns one node per prim. Parent holds the parent prim's path and is
// empty for top-level prims.
func FromStage(stage *usd.Stage) *scene.Tree {
	tree := scene.NewTree()
	for _, p := range stage.Traverse() {
		node := scene.GenericNode{
			Name:       p.Name(),
			TypeName:   p.TypeName(),
			Properties: make(map[string]scene.PropertyValue),
		}
		if parent := p.Parent(); parent != nil && !parent.IsPseudoRoot() {
			node.Parent = parent.Path().String()
		}

		for _, a := range p.Attributes() {
			v, ok := a.Get()
			if !ok {
				continue
			}
			node.Properties[a.Name()] = propertyOf(a.TypeName(), v)
		}
		tree.Add(node)
	}
	return tree
}

// propertyOf carries primitive values through as-is and everything else as
// Opaque text. float3 and matrix4d values do not come back as Vector3 or
// Transform.
func propertyOf(t usd.ValueType, v any) scene.PropertyValue {
	switch val := v.(type) {
	case bool:
		return scene.Boolean(val)
	case int:
		return scene.Number(val)
	case float32:
		return scene.Number(val)
	case float64:
		return scene.Number(val)
	case string:
		return scene.Text(val)
	case usd.Token:
		return scene.Text(val)
	case usd.RawValue:
		if numericRaw[t] {
			if f, err := strconv.ParseFloat(val.Text, 64); err == nil {
				return scene.Number(f)
			}
		}
	}
	return scene.Opaque{TypeName: string(t), Raw: usd.FormatValue(v)}
}
