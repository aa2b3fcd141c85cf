// Package ir is the JSON interchange form of a scene tree.
package ir

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"tscnusd/internal/scene"
)

// Version is the document version written by Encode.
const Version = "1"

const schemaURL = "https://tscnusd.dev/schemas/tree.schema.json"

//go:embed tree.schema.json
var schemaJSON []byte

var ErrInvalidDocument = errors.New("ir: invalid document")

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Document is the top-level JSON object.
type Document struct {
	Version string `json:"version"`
	Nodes   []Node `json:"nodes"`
}

// Node is one scene node. Property values are dynamic JSON shapes; tagged
// objects ({"type": "Vector3", ...}) carry the typed shapes.
type Node struct {
	Name       string         `json:"name"`
	Type       string         `json:"type,omitempty"`
	Parent     string         `json:"parent,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// DroppedValue is a property whose JSON shape has no PropertyValue.
type DroppedValue struct {
	Node     string `json:"node"`
	Property string `json:"property"`
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks raw JSON against the document schema.
func Validate(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("ir: failed to compile schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: schema validation failed: %w", ErrInvalidDocument, err)
	}
	return nil
}

// Decode validates data and converts it into a tree. Properties whose
// shape is not a PropertyValue (arrays, null) are left out and reported.
func Decode(data []byte) (*scene.Tree, []DroppedValue, error) {
	if err := Validate(data); err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	tree := scene.NewTree()
	var dropped []DroppedValue
	for _, n := range doc.Nodes {
		node := scene.GenericNode{
			Name:       n.Name,
			TypeName:   n.Type,
			Parent:     n.Parent,
			Properties: make(map[string]scene.PropertyValue, len(n.Properties)),
		}
		for name, raw := range n.Properties {
			v, ok := scene.ValueOf(normalize(raw))
			if !ok {
				dropped = append(dropped, DroppedValue{Node: n.Name, Property: name})
				continue
			}
			node.Properties[name] = v
		}
		tree.Add(node)
	}
	sort.Slice(dropped, func(i, j int) bool {
		if dropped[i].Node == dropped[j].Node {
			return dropped[i].Property < dropped[j].Property
		}
		return dropped[i].Node < dropped[j].Node
	})
	return tree, dropped, nil
}

// normalize turns json.Number values, including those nested in objects,
// into float64.
func normalize(raw any) any {
	switch v := raw.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	default:
		return raw
	}
}

// Encode renders tree as an indented document. The tree must resolve.
func Encode(tree *scene.Tree) ([]byte, error) {
	if _, err := tree.Resolve(); err != nil {
		return nil, err
	}

	doc := Document{Version: Version, Nodes: make([]Node, 0, tree.Len())}
	if tree != nil {
		for _, n := range tree.Nodes {
			node := Node{Name: n.Name, Type: n.TypeName}
			if !n.IsRoot() {
				node.Parent = n.Parent
			}
			if len(n.Properties) > 0 {
				node.Properties = make(map[string]any, len(n.Properties))
				for name, v := range n.Properties {
					node.Properties[name] = scene.Raw(v)
				}
			}
			doc.Nodes = append(doc.Nodes, node)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ir: failed to encode tree: %w", err)
	}
	return append(data, '\n'), nil
}

// ReadFile loads and decodes the document at path.
func ReadFile(path string) (*scene.Tree, []DroppedValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("ir: failed to open tree file: %w", err)
	}
	return Decode(data)
}

// WriteFile encodes tree to path.
func WriteFile(path string, tree *scene.Tree) error {
	data, err := Encode(tree)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ir: failed to write tree file: %w", err)
	}
	return nil
}
