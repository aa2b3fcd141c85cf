// Package tscn reads and writes Godot text scenes (.tscn) in terms of the
// format-neutral scene tree.
package tscn

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"cogentcore.org/core/base/indent"

	"tscnusd/internal/scene"
)

const (
	DefaultIndent       = 2
	DefaultResourceType = "Resource"
	sceneFormat         = 3
)

// WriteOptions configures Write.
type WriteOptions struct {
	// Indent is the number of spaces per depth level. Zero uses
	// DefaultIndent; a negative value writes every block flush left.
	Indent int
	// ResourceType is the type of the source resource reference line.
	ResourceType string
	// Source is recorded as the scene's external resource. Empty omits the
	// reference line.
	Source string
}

func (o WriteOptions) withDefaults() WriteOptions {
	switch {
	case o.Indent == 0:
		o.Indent = DefaultIndent
	case o.Indent < 0:
		o.Indent = 0
	}
	if o.ResourceType == "" {
		o.ResourceType = DefaultResourceType
	}
	return o
}

// Marshal resolves tree and encodes it.
func Marshal(tree *scene.Tree, opts WriteOptions) ([]byte, error) {
	nodes, err := tree.Resolve()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Write(&buf, nodes, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes resolved nodes as a text scene. Node blocks are indented by
// depth; properties follow their node header sorted by name.
func Write(w io.Writer, nodes []scene.ResolvedNode, opts WriteOptions) error {
	opts = opts.withDefaults()
	sw := &sceneWriter{w: w}

	sw.printf("[gd_scene format=%d]\n", sceneFormat)
	if opts.Source != "" {
		sw.printf("\n[ext_resource type=%s path=%s id=\"1\"]\n", quote(opts.ResourceType), quote(opts.Source))
	}

	first := ""
	for _, n := range nodes {
		if first == "" && n.Depth == 0 {
			first = n.Path
		}
		pad := indent.Spaces(max(n.Depth, 0), opts.Indent)

		header := "[node name=" + quote(n.Name)
		if n.TypeName != "" {
			header += " type=" + quote(n.TypeName)
		}
		if parent, ok := godotParent(first, n.Path); ok {
			header += " parent=" + quote(parent)
		}
		sw.printf("\n%s%s]\n", pad, header)

		for _, name := range n.PropertyNames() {
			sw.printf("%s%s = %s\n", pad, name, FormatValue(n.Properties[name]))
		}
	}
	return sw.err
}

// godotParent expresses the parent of path relative to the scene root at
// root. Top-level nodes have no parent attribute; children of other
// top-level nodes keep an absolute parent path.
func godotParent(root, path string) (string, bool) {
	dir := scene.Dir(path)
	switch {
	case dir == scene.RootPath:
		return "", false
	case dir == root:
		return scene.NoParent, true
	case strings.HasPrefix(dir, root+"/"):
		return strings.TrimPrefix(dir, root+"/"), true
	default:
		return dir, true
	}
}

type sceneWriter struct {
	w   io.Writer
	err error
}

func (sw *sceneWriter) printf(format string, args ...any) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintf(sw.w, format, args...)
}
