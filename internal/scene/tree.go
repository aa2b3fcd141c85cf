// Package scene holds the format-neutral scene tree shared by the TSCN and
// USD sides of a conversion: named nodes with a type tag, a parent
// reference and a bag of typed properties.
package scene

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

const (
	// NoParent is the parent marker for a root node.
	NoParent = "."
	// RootPath is the resolved path of the scene root itself.
	RootPath = "/"
)

// GenericNode represents one scene-graph node independent of format.
//
// Parent is empty or NoParent for a root. A reference starting with "/" is
// the parent's resolved path; anything else is a parent name.
type GenericNode struct {
	Name       string                   `json:"name"`
	TypeName   string                   `json:"type"`
	Parent     string                   `json:"parent,omitempty"`
	Properties map[string]PropertyValue `json:"-"`
}

// IsRoot reports whether the node carries no parent reference.
func (n GenericNode) IsRoot() bool {
	p := strings.TrimSpace(n.Parent)
	return p == "" || p == NoParent || p == RootPath
}

// PropertyNames returns the property names in sorted order.
func (n GenericNode) PropertyNames() []string {
	names := make([]string, 0, len(n.Properties))
	for k := range n.Properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy whose property map is not shared with n.
func (n GenericNode) Clone() GenericNode {
	out := n
	if n.Properties != nil {
		out.Properties = maps.Clone(n.Properties)
	}
	return out
}

// Tree is an ordered sequence of nodes in which every parent appears before
// its children.
type Tree struct {
	Nodes []GenericNode `json:"nodes"`
}

// NewTree creates a tree from nodes in pre-order.
func NewTree(nodes ...GenericNode) *Tree {
	return &Tree{Nodes: nodes}
}

// Add appends a node.
func (t *Tree) Add(n GenericNode) {
	t.Nodes = append(t.Nodes, n)
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

// ResolvedNode is a node annotated with its absolute path. It owns a private
// copy of the source node.
type ResolvedNode struct {
	GenericNode
	Path  string
	Depth int
}

// Resolve computes the absolute path of every node in stored order.
// Resolution is all-or-nothing: the first orphaned node, duplicate path or
// malformed name aborts with a typed error and no partial result.
func (t *Tree) Resolve() ([]ResolvedNode, error) {
	if t == nil {
		return nil, nil
	}

	byName := make(map[string]string, len(t.Nodes))
	byPath := make(map[string]bool, len(t.Nodes))
	out := make([]ResolvedNode, 0, len(t.Nodes))

	for i, n := range t.Nodes {
		if err := checkName(n.Name); err != nil {
			return nil, &InvalidNameError{Node: n.Name, Index: i, Reason: err.Error()}
		}

		parentPath := RootPath
		if !n.IsRoot() {
			ref := strings.TrimSpace(n.Parent)
			var ok bool
			if strings.HasPrefix(ref, "/") {
				ref = strings.TrimSuffix(ref, "/")
				ok = byPath[ref]
				parentPath = ref
			} else {
				parentPath, ok = byName[ref]
			}
			if !ok {
				return nil, &MissingParentError{Node: n.Name, Parent: n.Parent, Index: i}
			}
		}

		path := Join(parentPath, n.Name)
		if byPath[path] {
			return nil, &DuplicatePathError{Node: n.Name, Path: path, Index: i}
		}
		byPath[path] = true
		byName[n.Name] = path

		out = append(out, ResolvedNode{
			GenericNode: n.Clone(),
			Path:        path,
			Depth:       Depth(path),
		})
	}
	return out, nil
}

func checkName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("name is empty")
	case strings.Contains(name, "/"):
		return fmt.Errorf("name contains '/'")
	case name == NoParent || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	}
	return nil
}

// Join appends a child name to a resolved parent path.
func Join(parent, name string) string {
	if parent == "" || parent == RootPath {
		return RootPath + name
	}
	return parent + "/" + name
}

// Base returns the last segment of a resolved path.
func Base(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Dir returns the parent of a resolved path; top-level paths yield RootPath.
func Dir(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return RootPath
	}
	return path[:i]
}

// Depth returns 0 for top-level paths, 1 for their children and so on.
func Depth(path string) int {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return -1
	}
	return strings.Count(trimmed, "/")
}

// MissingParentError reports a node whose parent was not resolved before it.
type MissingParentError struct {
	Node   string
	Parent string
	Index  int
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("node %q (index %d): parent %q was never resolved", e.Node, e.Index, e.Parent)
}

// DuplicatePathError reports two nodes resolving to the same path.
type DuplicatePathError struct {
	Node  string
	Path  string
	Index int
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("node %q (index %d): path %s is already taken", e.Node, e.Index, e.Path)
}

// InvalidNameError reports a node name that cannot form a path segment.
type InvalidNameError struct {
	Node   string
	Index  int
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("node %q (index %d): invalid name: %s", e.Node, e.Index, e.Reason)
}
