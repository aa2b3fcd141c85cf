package tscn

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tscnusd/internal/scene"
)

// ParseError reports malformed scene text.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tscn: line %d: %s", e.Line, e.Msg)
}

// ExtResource is an [ext_resource] entry.
type ExtResource struct {
	ID   string
	Type string
	Path string
}

// Document is a decoded text scene.
type Document struct {
	Format    int
	Resources []ExtResource
	Tree      *scene.Tree
	// Skipped counts sections that carry no node data, such as
	// sub-resources and connections.
	Skipped int
}

// ReadFile decodes the scene at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a text scene. Node parents are rewritten from Godot's
// root-relative form into resolved paths so the tree resolves as-is.
func Read(r io.Reader) (*Document, error) {
	doc := &Document{Tree: scene.NewTree()}
	rd := &reader{doc: doc}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		pending     strings.Builder
		pendingKey  string
		pendingLine int
	)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()

		if pendingKey != "" {
			pending.WriteByte('\n')
			pending.WriteString(text)
			if !complete(pending.String()) {
				continue
			}
			if err := rd.property(pendingLine, pendingKey, pending.String()); err != nil {
				return nil, err
			}
			pendingKey = ""
			pending.Reset()
			continue
		}

		trimmed := strings.TrimSpace(text)
		switch {
		case trimmed == "", strings.HasPrefix(trimmed, ";"):
			continue
		case strings.HasPrefix(trimmed, "["):
			if err := rd.heading(line, trimmed); err != nil {
				return nil, err
			}
			continue
		}

		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			return nil, &ParseError{Line: line, Msg: fmt.Sprintf("expected key = value, found %q", trimmed)}
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" {
			return nil, &ParseError{Line: line, Msg: "empty property name"}
		}
		if !complete(value) {
			pendingKey, pendingLine = key, line
			pending.WriteString(value)
			continue
		}
		if err := rd.property(line, key, value); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if pendingKey != "" {
		return nil, &ParseError{Line: pendingLine, Msg: fmt.Sprintf("unterminated value for %q", pendingKey)}
	}
	return doc, nil
}

type reader struct {
	doc     *Document
	root    string
	current *scene.GenericNode
	skip    bool
}

func (rd *reader) heading(line int, text string) error {
	tag, attrs, err := parseHeading(text)
	if err != nil {
		return &ParseError{Line: line, Msg: err.Error()}
	}

	rd.current = nil
	rd.skip = false
	switch tag {
	case "gd_scene":
		if f, err := strconv.Atoi(attrs["format"]); err == nil {
			rd.doc.Format = f
		}
	case "ext_resource":
		rd.doc.Resources = append(rd.doc.Resources, ExtResource{
			ID:   attrs["id"],
			Type: attrs["type"],
			Path: attrs["path"],
		})
	case "node":
		name := attrs["name"]
		if name == "" {
			return &ParseError{Line: line, Msg: "node without a name"}
		}
		n := scene.GenericNode{
			Name:       name,
			TypeName:   attrs["type"],
			Properties: make(map[string]scene.PropertyValue),
		}
		parent, hasParent := attrs["parent"]
		switch {
		case !hasParent:
			if rd.root == "" {
				rd.root = scene.Join(scene.RootPath, name)
			}
		case rd.root == "":
			return &ParseError{Line: line, Msg: fmt.Sprintf("node %q has a parent but the scene has no root", name)}
		case parent == scene.NoParent:
			n.Parent = rd.root
		case strings.HasPrefix(parent, "/"):
			n.Parent = parent
		default:
			n.Parent = rd.root + "/" + strings.Trim(parent, "/")
		}
		rd.doc.Tree.Add(n)
		rd.current = &rd.doc.Tree.Nodes[len(rd.doc.Tree.Nodes)-1]
	default:
		// sub_resource, connection, editable and anything newer
		rd.skip = true
		rd.doc.Skipped++
	}
	return nil
}

func (rd *reader) property(line int, key, value string) error {
	if rd.skip {
		return nil
	}
	if rd.current == nil {
		// resource properties outside a node
		return nil
	}
	v, err := ParseValue(value)
	if err != nil {
		return &ParseError{Line: line, Msg: fmt.Sprintf("%s: %v", key, err)}
	}
	rd.current.Properties[key] = v
	return nil
}

// parseHeading splits [tag key=value ...] into its tag and attributes.
// Values are quoted strings or bare words such as ExtResource("1").
func parseHeading(text string) (string, map[string]string, error) {
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return "", nil, fmt.Errorf("malformed section heading %q", text)
	}
	body := text[1 : len(text)-1]
	tag, rest, _ := strings.Cut(body, " ")
	if tag == "" {
		return "", nil, fmt.Errorf("section heading without a tag")
	}

	attrs := map[string]string{}
	for rest = strings.TrimSpace(rest); rest != ""; rest = strings.TrimSpace(rest) {
		key, after, ok := strings.Cut(rest, "=")
		if !ok {
			return "", nil, fmt.Errorf("malformed attribute %q in [%s]", rest, tag)
		}
		key = strings.TrimSpace(key)
		after = strings.TrimLeft(after, " ")

		end := valueEnd(after)
		raw := after[:end]
		rest = after[end:]
		if strings.HasPrefix(raw, `"`) {
			s, err := unquote(raw)
			if err != nil {
				return "", nil, fmt.Errorf("attribute %s: %w", key, err)
			}
			attrs[key] = s
		} else {
			attrs[key] = raw
		}
	}
	return tag, attrs, nil
}

// valueEnd returns the length of the leading value in s: a quoted string,
// or a bare word running to the first space outside brackets.
func valueEnd(s string) int {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
				if depth == 0 {
					return i + 1
				}
			}
		case c == '"':
			inString = true
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ' ' && depth <= 0:
			return i
		}
	}
	return len(s)
}

// complete reports whether every bracket and string in a value is closed.
func complete(s string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		}
	}
	return !inString && depth <= 0
}
