package usd

import (
	"bytes"
	"fmt"
	"io"

	"cogentcore.org/core/base/indent"
)

const indentWidth = 4

// MarshalText encodes the stage as a .usda text layer.
func (s *Stage) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the stage to w as a .usda text layer.
func (s *Stage) Encode(w io.Writer) error {
	lw := &layerWriter{w: w}
	lw.line(0, "#usda 1.0")
	if s.metadata.Len() > 0 {
		lw.line(0, "(")
		for _, kv := range s.metadata.Order {
			if kv.Key == "doc" {
				lw.line(1, "%s", kv.Value)
				continue
			}
			lw.line(1, "%s = %s", kv.Key, kv.Value)
		}
		lw.line(0, ")")
	}
	for _, p := range s.root.Children() {
		lw.blank()
		lw.prim(p, 0)
	}
	return lw.err
}

type layerWriter struct {
	w   io.Writer
	err error
}

func (lw *layerWriter) line(depth int, format string, args ...any) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, "%s%s\n", indent.Spaces(depth, indentWidth), fmt.Sprintf(format, args...))
}

func (lw *layerWriter) blank() {
	if lw.err != nil {
		return
	}
	_, lw.err = io.WriteString(lw.w, "\n")
}

func (lw *layerWriter) prim(p *Prim, depth int) {
	header := p.specifier.String()
	if p.typeName != "" {
		header += " " + p.typeName
	}
	lw.line(depth, "%s %s", header, Quote(p.Name()))
	lw.line(depth, "{")

	for _, a := range p.Attributes() {
		lw.attribute(a, depth+1)
	}
	for i, c := range p.Children() {
		if i > 0 || p.attrs.Len() > 0 {
			lw.blank()
		}
		lw.prim(c, depth+1)
	}

	lw.line(depth, "}")
}

func (lw *layerWriter) attribute(a *Attribute, depth int) {
	decl := ""
	if a.custom {
		decl += "custom "
	}
	if a.uniform {
		decl += "uniform "
	}
	decl += string(a.typ) + " " + a.name
	if a.hasValue {
		lw.line(depth, "%s = %s", decl, FormatValue(a.value))
		return
	}
	lw.line(depth, "%s", decl)
}
