package pipeline

import (
	"fmt"
	"strings"

	"cogentcore.org/core/base/indent"

	"tscnusd/internal/convert"
	"tscnusd/internal/crawler"
	"tscnusd/internal/mapper"
	"tscnusd/internal/scene"
	"tscnusd/internal/tscn"
	"tscnusd/internal/usd"
)

// LoadTree reads the scene tree of a USD layer, a text scene or a JSON tree
// document.
func LoadTree(path string) (*scene.Tree, error) {
	if kind, ok := crawler.KindOf(path); ok && kind == crawler.KindUSD {
		stage, err := usd.Open(path)
		if err != nil {
			return nil, err
		}
		defer stage.Close()
		return mapper.FromStage(stage), nil
	}
	return convert.ReadTree(path)
}

// Describe renders tree as an indented outline, one node per line followed by
// its properties in Godot value syntax.
func Describe(tree *scene.Tree) (string, error) {
	nodes, err := tree.Resolve()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, n := range nodes {
		pad := indent.Spaces(n.Depth, 2)
		typeName := n.TypeName
		if typeName == "" {
			typeName = "-"
		}
		fmt.Fprintf(&b, "%s%s [%s]\n", pad, n.Path, typeName)
		for _, name := range n.PropertyNames() {
			fmt.Fprintf(&b, "%s  .%s = %s\n", pad, name, tscn.FormatValue(n.Properties[name]))
		}
	}
	return b.String(), nil
}
