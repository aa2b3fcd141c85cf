package usd

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

type nodeKind int

const (
	nodeAtom nodeKind = iota
	nodeString
	nodeAsset
	nodePathRef
	nodeTuple
	nodeList
	nodeBlock
)

// valueNode is a parsed but untyped value expression.
type valueNode struct {
	kind  nodeKind
	text  string
	raw   string
	items []valueNode
}

// String renders the node in canonical text form.
func (n valueNode) String() string {
	switch n.kind {
	case nodeTuple, nodeList:
		parts := make([]string, len(n.items))
		for i, it := range n.items {
			parts[i] = it.String()
		}
		open, close := "(", ")"
		if n.kind == nodeList {
			open, close = "[", "]"
		}
		return open + strings.Join(parts, ", ") + close
	case nodeAtom:
		return n.text
	default:
		return n.raw
	}
}

type parser struct {
	lx    *lexer
	tok   token
	stage *Stage
}

// ParseLayer decodes .usda text into a new anonymous stage. name is used in
// error messages only.
func ParseLayer(name string, data []byte) (*Stage, error) {
	if !bytes.HasPrefix(data, usdaMagic) {
		return nil, &ParseError{File: name, Line: 1, Msg: "missing #usda header"}
	}

	p := &parser{lx: newLexer(name, string(data)), stage: NewStage()}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.isPunct("(") {
		err := p.metadata(func(key, value string) {
			p.stage.metadata.Add(key, value)
		})
		if err != nil {
			return nil, err
		}
	}

	for p.tok.kind != tokEOF {
		if p.isPunct(";") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if err := p.primSpec(p.stage.root); err != nil {
			return nil, err
		}
	}
	return p.stage, nil
}

func (p *parser) advance() error {
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{File: p.lx.file, Line: p.tok.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) errorAt(line int, format string, args ...any) error {
	return &ParseError{File: p.lx.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) isIdent(s string) bool {
	return p.tok.kind == tokIdent && p.tok.text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return p.errorf("expected %q, found %q", s, p.tok.raw)
	}
	return p.advance()
}

func (p *parser) ident() (string, error) {
	if p.tok.kind != tokIdent {
		return "", p.errorf("expected identifier, found %q", p.tok.raw)
	}
	s := p.tok.text
	return s, p.advance()
}

var listOps = map[string]bool{
	"add": true, "append": true, "delete": true, "prepend": true, "reorder": true,
}

// metadata parses a parenthesized metadata block, reporting plain entries
// to set. List edits are consumed and dropped.
func (p *parser) metadata(set func(key, value string)) error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.isPunct(")") {
		switch {
		case p.tok.kind == tokEOF:
			return p.errorf("unterminated metadata")
		case p.isPunct(";"):
			if err := p.advance(); err != nil {
				return err
			}
		case p.tok.kind == tokString:
			set("doc", p.tok.raw)
			if err := p.advance(); err != nil {
				return err
			}
		case p.tok.kind == tokIdent:
			key, err := p.ident()
			if err != nil {
				return err
			}
			op := listOps[key] && p.tok.kind == tokIdent
			if op {
				if key, err = p.ident(); err != nil {
					return err
				}
			}
			if err := p.expectPunct("="); err != nil {
				return err
			}
			v, err := p.value()
			if err != nil {
				return err
			}
			if !op {
				set(key, v.String())
			}
		default:
			return p.errorf("unexpected %q in metadata", p.tok.raw)
		}
	}
	return p.advance()
}

func (p *parser) primSpec(parent *Prim) error {
	var spec Specifier
	switch {
	case p.isIdent("def"):
		spec = SpecifierDef
	case p.isIdent("over"):
		spec = SpecifierOver
	case p.isIdent("class"):
		spec = SpecifierClass
	default:
		return p.errorf("expected prim specifier, found %q", p.tok.raw)
	}
	if err := p.advance(); err != nil {
		return err
	}

	typeName := ""
	if p.tok.kind == tokIdent {
		var err error
		if typeName, err = p.ident(); err != nil {
			return err
		}
	}
	if p.tok.kind != tokString {
		return p.errorf("expected prim name, found %q", p.tok.raw)
	}
	name := p.tok.text
	if !ValidName(name) {
		return p.errorf("invalid prim name %q", name)
	}
	if err := p.advance(); err != nil {
		return err
	}

	prim, ok := parent.Child(name)
	if !ok {
		prim = newPrim(parent.path.AppendChild(name), parent)
		parent.children.Add(name, prim)
		p.stage.prims[prim.path] = prim
	}
	prim.specifier = spec
	if typeName != "" {
		prim.typeName = typeName
	}

	if p.isPunct("(") {
		if err := p.metadata(func(string, string) {}); err != nil {
			return err
		}
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for !p.isPunct("}") {
		if p.tok.kind == tokEOF {
			return p.errorf("unterminated prim %s", prim.path)
		}
		if err := p.primItem(prim); err != nil {
			return err
		}
	}
	return p.advance()
}

func (p *parser) primItem(prim *Prim) error {
	switch {
	case p.isPunct(";"):
		return p.advance()
	case p.isIdent("def"), p.isIdent("over"), p.isIdent("class"):
		return p.primSpec(prim)
	case p.isIdent("variantSet"):
		return p.skipVariantSet()
	case p.isIdent("reorder"):
		// reorder nameChildren = [...]
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.ident(); err != nil {
			return err
		}
		if err := p.expectPunct("="); err != nil {
			return err
		}
		_, err := p.value()
		return err
	}
	return p.property(prim)
}

func (p *parser) property(prim *Prim) error {
	line := p.tok.line
	var custom, uniform bool
qualifiers:
	for {
		switch {
		case p.isIdent("custom"):
			custom = true
		case p.isIdent("uniform"):
			uniform = true
		case p.isIdent("varying"), p.isIdent("config"):
		default:
			break qualifiers
		}
		if err := p.advance(); err != nil {
			return err
		}
	}

	if p.tok.kind == tokIdent && listOps[p.tok.text] {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if p.isIdent("rel") {
		return p.skipRelationship()
	}

	typeName, err := p.ident()
	if err != nil {
		return err
	}
	if p.isPunct("[") {
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expectPunct("]"); err != nil {
			return err
		}
		typeName += "[]"
	}
	name, err := p.ident()
	if err != nil {
		return err
	}

	// name.timeSamples, name.connect and friends are not default values.
	if p.isPunct(".") {
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.ident(); err != nil {
			return err
		}
		if p.isPunct("=") {
			if err := p.advance(); err != nil {
				return err
			}
			if _, err := p.value(); err != nil {
				return err
			}
		}
		if _, err := prim.CreateAttribute(name, ValueType(typeName)); err != nil {
			return p.errorAt(line, "%v", err)
		}
		return nil
	}

	var (
		v        valueNode
		hasValue bool
	)
	if p.isPunct("=") {
		if err := p.advance(); err != nil {
			return err
		}
		if v, err = p.value(); err != nil {
			return err
		}
		hasValue = !(v.kind == nodeAtom && v.text == "None")
	}
	if p.isPunct("(") {
		if err := p.metadata(func(string, string) {}); err != nil {
			return err
		}
	}

	attr, err := prim.CreateAttribute(name, ValueType(typeName))
	if err != nil {
		return p.errorAt(line, "%v", err)
	}
	attr.custom = attr.custom || custom
	attr.uniform = attr.uniform || uniform
	if !hasValue {
		return nil
	}

	val, err := convertValue(attr.typ, v)
	if err != nil {
		return p.errorAt(line, "%s.%s: %v", prim.path, name, err)
	}
	attr.value = val
	attr.hasValue = true
	return nil
}

func (p *parser) skipRelationship() error {
	if err := p.advance(); err != nil {
		return err
	}
	if _, err := p.ident(); err != nil {
		return err
	}
	if p.isPunct(".") {
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.ident(); err != nil {
			return err
		}
	}
	if p.isPunct("=") {
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.value(); err != nil {
			return err
		}
	}
	if p.isPunct("(") {
		return p.metadata(func(string, string) {})
	}
	return nil
}

// skipVariantSet consumes variantSet "name" = { ... } without authoring
// any of its variants.
func (p *parser) skipVariantSet() error {
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok.kind != tokString {
		return p.errorf("expected variant set name, found %q", p.tok.raw)
	}
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	_, err := p.block()
	return err
}

func (p *parser) value() (valueNode, error) {
	t := p.tok
	switch t.kind {
	case tokNumber, tokIdent:
		return valueNode{kind: nodeAtom, text: t.text, raw: t.raw}, p.advance()
	case tokString:
		return valueNode{kind: nodeString, text: t.text, raw: t.raw}, p.advance()
	case tokAsset:
		n := valueNode{kind: nodeAsset, text: t.text, raw: t.raw}
		if err := p.advance(); err != nil {
			return n, err
		}
		// A reference or payload may name a target prim and a layer offset
		// after the asset. The offset is consumed and dropped.
		if p.tok.kind == tokPathRef {
			n.raw += p.tok.raw
			if err := p.advance(); err != nil {
				return n, err
			}
		}
		if p.isPunct("(") {
			return n, p.metadata(func(string, string) {})
		}
		return n, nil
	case tokPathRef:
		return valueNode{kind: nodePathRef, text: t.text, raw: t.raw}, p.advance()
	case tokPunct:
		switch t.text {
		case "(":
			return p.sequence(nodeTuple, ")")
		case "[":
			return p.sequence(nodeList, "]")
		case "{":
			return p.block()
		}
	}
	return valueNode{}, p.errorf("expected value, found %q", t.raw)
}

func (p *parser) sequence(kind nodeKind, close string) (valueNode, error) {
	n := valueNode{kind: kind}
	if err := p.advance(); err != nil {
		return n, err
	}
	for !p.isPunct(close) {
		if p.tok.kind == tokEOF {
			return n, p.errorf("unterminated value, expected %q", close)
		}
		item, err := p.value()
		if err != nil {
			return n, err
		}
		n.items = append(n.items, item)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return n, err
			}
		} else if !p.isPunct(close) {
			return n, p.errorf("expected %q or \",\", found %q", close, p.tok.raw)
		}
	}
	return n, p.advance()
}

// block consumes a balanced { ... } region and keeps its tokens as text.
func (p *parser) block() (valueNode, error) {
	if !p.isPunct("{") {
		return valueNode{}, p.errorf("expected \"{\", found %q", p.tok.raw)
	}
	var parts []string
	depth := 0
	for {
		switch {
		case p.tok.kind == tokEOF:
			return valueNode{}, p.errorf("unterminated block")
		case p.isPunct("{"):
			depth++
		case p.isPunct("}"):
			depth--
		}
		parts = append(parts, p.tok.raw)
		if err := p.advance(); err != nil {
			return valueNode{}, err
		}
		if depth == 0 {
			raw := strings.Join(parts, " ")
			return valueNode{kind: nodeBlock, text: raw, raw: raw}, nil
		}
	}
}

// convertValue turns a parsed value into the Go representation of t.
func convertValue(t ValueType, n valueNode) (any, error) {
	switch t {
	case TypeBool:
		switch n.text {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, n.String())
	case TypeInt:
		if n.kind != nodeAtom {
			return nil, fmt.Errorf("%w: %q is not an int", ErrTypeMismatch, n.String())
		}
		i, err := strconv.Atoi(n.text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an int", ErrTypeMismatch, n.text)
		}
		return i, nil
	case TypeFloat:
		f, err := atomFloat(n, 32)
		return float32(f), err
	case TypeDouble:
		return atomFloat(n, 64)
	case TypeString:
		if n.kind != nodeString {
			return nil, fmt.Errorf("%w: %q is not a string", ErrTypeMismatch, n.String())
		}
		return n.text, nil
	case TypeToken:
		if n.kind != nodeString {
			return nil, fmt.Errorf("%w: %q is not a token", ErrTypeMismatch, n.String())
		}
		return Token(n.text), nil
	case TypeFloat3:
		f, err := tupleFloats(n, 3, 32)
		if err != nil {
			return nil, err
		}
		return mgl32.Vec3{float32(f[0]), float32(f[1]), float32(f[2])}, nil
	case TypeDouble3:
		f, err := tupleFloats(n, 3, 64)
		if err != nil {
			return nil, err
		}
		return mgl64.Vec3{f[0], f[1], f[2]}, nil
	case TypeMatrix4d:
		if n.kind != nodeTuple || len(n.items) != 4 {
			return nil, fmt.Errorf("%w: %q is not a matrix4d", ErrTypeMismatch, n.String())
		}
		var cols [4]mgl64.Vec4
		for i, row := range n.items {
			f, err := tupleFloats(row, 4, 64)
			if err != nil {
				return nil, err
			}
			cols[i] = mgl64.Vec4{f[0], f[1], f[2], f[3]}
		}
		return mgl64.Mat4FromCols(cols[0], cols[1], cols[2], cols[3]), nil
	}
	return RawValue{Text: n.String()}, nil
}

func atomFloat(n valueNode, bits int) (float64, error) {
	if n.kind != nodeAtom {
		return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, n.String())
	}
	f, err := strconv.ParseFloat(n.text, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, n.text)
	}
	return f, nil
}

func tupleFloats(n valueNode, size, bits int) ([]float64, error) {
	if n.kind != nodeTuple || len(n.items) != size {
		return nil, fmt.Errorf("%w: %q is not a %d-tuple", ErrTypeMismatch, n.String(), size)
	}
	out := make([]float64, size)
	for i, it := range n.items {
		f, err := atomFloat(it, bits)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
