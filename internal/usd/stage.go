// Package usd is a native scene description backend: an in-memory stage of
// prims and typed attributes that loads from and saves to .usda text layers
// and .usdz packages.
package usd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cogentcore.org/core/base/ordmap"
)

var (
	ErrLayerExists       = errors.New("usd: layer already exists")
	ErrUnsupportedFormat = errors.New("usd: unsupported layer format")
	ErrClosed            = errors.New("usd: stage is closed")
	ErrInvalidPath       = errors.New("usd: invalid path")
	ErrPrimNotFound      = errors.New("usd: prim not found")
	ErrTypeMismatch      = errors.New("usd: attribute type mismatch")
	ErrNoLayer           = errors.New("usd: stage has no backing layer")
)

// Specifier is how a prim spec contributes to the stage.
type Specifier int

const (
	SpecifierDef Specifier = iota
	SpecifierOver
	SpecifierClass
)

func (s Specifier) String() string {
	switch s {
	case SpecifierDef:
		return "def"
	case SpecifierOver:
		return "over"
	case SpecifierClass:
		return "class"
	default:
		return "unknown"
	}
}

// Attribute is a named, typed property of a prim.
type Attribute struct {
	name     string
	typ      ValueType
	custom   bool
	uniform  bool
	value    any
	hasValue bool
}

func (a *Attribute) Name() string        { return a.name }
func (a *Attribute) TypeName() ValueType { return a.typ }
func (a *Attribute) IsCustom() bool      { return a.custom }
func (a *Attribute) IsUniform() bool     { return a.uniform }
func (a *Attribute) HasValue() bool      { return a.hasValue }

// SetCustom marks the attribute as not belonging to the prim's schema.
func (a *Attribute) SetCustom(custom bool) { a.custom = custom }

// SetUniform marks the attribute as not time-varying.
func (a *Attribute) SetUniform(uniform bool) { a.uniform = uniform }

// Get returns the authored default value.
func (a *Attribute) Get() (any, bool) {
	return a.value, a.hasValue
}

// Set authors the default value. v must be the Go representation of the
// attribute's type.
func (a *Attribute) Set(v any) error {
	if err := checkValue(a.typ, v); err != nil {
		return fmt.Errorf("attribute %s: %w", a.name, err)
	}
	a.value = v
	a.hasValue = true
	return nil
}

// Prim is a node of the stage's namespace.
type Prim struct {
	path      Path
	typeName  string
	specifier Specifier
	parent    *Prim
	children  *ordmap.Map[string, *Prim]
	attrs     *ordmap.Map[string, *Attribute]
}

func newPrim(path Path, parent *Prim) *Prim {
	return &Prim{
		path:     path,
		parent:   parent,
		children: ordmap.New[string, *Prim](),
		attrs:    ordmap.New[string, *Attribute](),
	}
}

func (p *Prim) Path() Path           { return p.path }
func (p *Prim) Name() string         { return p.path.Name() }
func (p *Prim) TypeName() string     { return p.typeName }
func (p *Prim) Specifier() Specifier { return p.specifier }

// Parent returns nil for the pseudo-root.
func (p *Prim) Parent() *Prim { return p.parent }

// IsPseudoRoot reports whether p is the stage's root.
func (p *Prim) IsPseudoRoot() bool { return p.path == AbsoluteRoot }

// IsDefined reports whether p and all of its ancestors are defs.
func (p *Prim) IsDefined() bool {
	for q := p; q != nil && !q.IsPseudoRoot(); q = q.parent {
		if q.specifier != SpecifierDef {
			return false
		}
	}
	return true
}

// Children returns the child prims in authoring order.
func (p *Prim) Children() []*Prim {
	return p.children.Values()
}

// Child looks up a direct child by name.
func (p *Prim) Child(name string) (*Prim, bool) {
	return p.children.ValueByKeyTry(name)
}

// Attributes returns the prim's attributes in authoring order.
func (p *Prim) Attributes() []*Attribute {
	return p.attrs.Values()
}

// Attribute looks up an attribute by name.
func (p *Prim) Attribute(name string) (*Attribute, bool) {
	return p.attrs.ValueByKeyTry(name)
}

// CreateAttribute returns the attribute called name, creating it with type t
// if it does not exist. An existing attribute of another type is an error.
func (p *Prim) CreateAttribute(name string, t ValueType) (*Attribute, error) {
	if p.IsPseudoRoot() {
		return nil, fmt.Errorf("%w: the pseudo-root has no attributes", ErrInvalidPath)
	}
	if !ValidPropertyName(name) {
		return nil, fmt.Errorf("%w: property name %q", ErrInvalidPath, name)
	}
	if a, ok := p.attrs.ValueByKeyTry(name); ok {
		if a.typ != t {
			return nil, fmt.Errorf("%w: %s.%s is %s, not %s", ErrTypeMismatch, p.path, name, a.typ, t)
		}
		return a, nil
	}
	a := &Attribute{name: name, typ: t}
	p.attrs.Add(name, a)
	return a, nil
}

// Stage is a composed view over a single root layer.
type Stage struct {
	path     string
	format   Format
	root     *Prim
	prims    map[Path]*Prim
	metadata *ordmap.Map[string, string]
	closed   bool
}

// CreateOptions configures CreateNew.
type CreateOptions struct {
	// Overwrite allows replacing an existing layer file on Save.
	Overwrite bool
	// Format forces the layer format; empty selects it from the extension.
	Format Format
}

// NewStage returns an anonymous in-memory stage with no backing layer.
func NewStage() *Stage {
	root := newPrim(AbsoluteRoot, nil)
	return &Stage{
		root:     root,
		prims:    map[Path]*Prim{AbsoluteRoot: root},
		metadata: ordmap.New[string, string](),
	}
}

// CreateNew prepares an empty stage that Save writes to path. Nothing is
// written until Save; an existing file is refused unless Overwrite is set.
func CreateNew(path string, opts CreateOptions) (*Stage, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = FormatForPath(path); err != nil {
			return nil, err
		}
	}
	if format == FormatUSDC {
		return nil, fmt.Errorf("%w: %s (crate format not supported)", ErrUnsupportedFormat, path)
	}
	if _, err := os.Stat(path); err == nil && !opts.Overwrite {
		return nil, fmt.Errorf("%w: %s", ErrLayerExists, path)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("usd: cannot create %s: parent directory does not exist", path)
	}

	s := NewStage()
	s.path = path
	s.format = format
	return s, nil
}

// Open loads the layer at path.
func Open(path string) (*Stage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("usd: open %s: %w", path, err)
	}

	format, err := detectFormat(path, data)
	if err != nil {
		return nil, err
	}

	var s *Stage
	switch format {
	case FormatUSDA:
		s, err = ParseLayer(path, data)
	case FormatUSDZ:
		s, err = readPackage(path, data)
	default:
		return nil, fmt.Errorf("%w: %s (crate format not supported)", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	s.path = path
	s.format = format
	return s, nil
}

// Path returns the backing layer path, empty for anonymous stages.
func (s *Stage) Path() string { return s.path }

// Format returns the backing layer format.
func (s *Stage) Format() Format { return s.format }

// PseudoRoot returns the root of the namespace.
func (s *Stage) PseudoRoot() *Prim { return s.root }

// Prim returns the prim at path.
func (s *Stage) Prim(path Path) (*Prim, bool) {
	p, ok := s.prims[path]
	return p, ok
}

// GetPrim is like Prim but takes a textual path and reports a missing prim
// as ErrPrimNotFound.
func (s *Stage) GetPrim(path string) (*Prim, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	prim, ok := s.prims[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrimNotFound, path)
	}
	return prim, nil
}

// DefinePrim makes the prim at path a def of the given type, creating it and
// any missing ancestors (as typeless defs) as needed.
func (s *Stage) DefinePrim(path Path, typeName string) (*Prim, error) {
	return s.definePrim(path, typeName, SpecifierDef)
}

// OverridePrim creates an over at path without changing an existing prim's
// specifier.
func (s *Stage) OverridePrim(path Path) (*Prim, error) {
	if p, ok := s.prims[path]; ok {
		return p, nil
	}
	return s.definePrim(path, "", SpecifierOver)
}

func (s *Stage) definePrim(path Path, typeName string, spec Specifier) (*Prim, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if _, err := ParsePath(string(path)); err != nil {
		return nil, err
	}
	if path == AbsoluteRoot {
		return nil, fmt.Errorf("%w: cannot define the pseudo-root", ErrInvalidPath)
	}

	parent := s.root
	elems := path.Elements()
	for i, name := range elems {
		child, ok := parent.Child(name)
		if !ok {
			child = newPrim(parent.path.AppendChild(name), parent)
			child.specifier = spec
			parent.children.Add(name, child)
			s.prims[child.path] = child
		}
		if i == len(elems)-1 {
			if spec == SpecifierDef {
				child.specifier = SpecifierDef
			}
			if typeName != "" {
				child.typeName = typeName
			}
		}
		parent = child
	}
	return parent, nil
}

// Traverse returns every defined, non-abstract prim in depth-first
// pre-order. Subtrees under an over or a class are pruned.
func (s *Stage) Traverse() []*Prim {
	var out []*Prim
	var walk func(p *Prim)
	walk = func(p *Prim) {
		for _, c := range p.Children() {
			if c.specifier != SpecifierDef {
				continue
			}
			out = append(out, c)
			walk(c)
		}
	}
	walk(s.root)
	return out
}

// Metadata returns a layer metadata entry in its textual form.
func (s *Stage) Metadata(key string) (string, bool) {
	return s.metadata.ValueByKeyTry(key)
}

// SetMetadata authors a layer metadata entry. value must already be in
// textual form, e.g. a quoted string.
func (s *Stage) SetMetadata(key, value string) {
	s.metadata.Add(key, value)
}

// DefaultPrim returns the defaultPrim layer metadata, if any.
func (s *Stage) DefaultPrim() string {
	raw, ok := s.metadata.ValueByKeyTry("defaultPrim")
	if !ok {
		return ""
	}
	if v, err := strconv.Unquote(raw); err == nil {
		return v
	}
	return raw
}

// SetDefaultPrim records the name of the layer's default prim.
func (s *Stage) SetDefaultPrim(name string) {
	s.metadata.Add("defaultPrim", Quote(name))
}

// Save writes the root layer back to its path, atomically.
func (s *Stage) Save() error {
	if s.closed {
		return ErrClosed
	}
	if s.path == "" {
		return ErrNoLayer
	}
	return s.Export(s.path, s.format)
}

// Export writes the stage to path in the given format without changing the
// stage's backing layer.
func (s *Stage) Export(path string, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatUSDA, "":
		data, err = s.MarshalText()
	case FormatUSDZ:
		data, err = writePackage(s, path)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Close releases the stage. Further mutation or saving fails.
func (s *Stage) Close() error {
	s.closed = true
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("usd: save %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("usd: save %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("usd: save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("usd: save %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("usd: save %s: %w", path, err)
	}
	return nil
}
