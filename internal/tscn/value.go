package tscn

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tscnusd/internal/scene"
)

// RawKey holds the verbatim Godot text of a value the reader could not
// type. The writer emits it back unchanged.
const RawKey = "godot"

// FormatValue renders a property in Godot variant text form.
func FormatValue(v scene.PropertyValue) string {
	switch val := v.(type) {
	case scene.Number:
		return formatFloat(float64(val))
	case scene.Text:
		return quote(string(val))
	case scene.Boolean:
		return strconv.FormatBool(bool(val))
	case scene.Vector3:
		return fmt.Sprintf("Vector3(%s, %s, %s)", formatFloat(val.X), formatFloat(val.Y), formatFloat(val.Z))
	case scene.Transform:
		o := val.Origin
		return fmt.Sprintf("Transform3D(1, 0, 0, 0, 1, 0, 0, 0, 1, %s, %s, %s)",
			formatFloat(o.X), formatFloat(o.Y), formatFloat(o.Z))
	case scene.Opaque:
		return val.Raw
	case scene.Structured:
		if raw, ok := val[RawKey].(string); ok {
			return raw
		}
		return formatDynamic(map[string]any(val))
	default:
		return "null"
	}
}

// formatDynamic renders decoded JSON-like data as a Godot literal.
func formatDynamic(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		if pv, ok := scene.ValueOf(val); ok {
			switch pv.(type) {
			case scene.Vector3, scene.Transform, scene.Opaque:
				return FormatValue(pv)
			}
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quote(k) + ": " + formatDynamic(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatDynamic(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		if pv, ok := scene.ValueOf(val); ok {
			return FormatValue(pv)
		}
		return quote(fmt.Sprint(val))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// quote escapes backslashes and quotes. Newlines stay literal, so a string
// value may span lines.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// unquote reverses quote and also decodes the common C escapes.
func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("not a quoted string: %s", s)
	}
	body := s[1 : len(s)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape in %s", s)
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String(), nil
}

// ParseValue types a Godot variant literal. Numbers, strings, booleans,
// Vector3 and Transform3D are recognised; Transform3D keeps only its origin.
// Anything else comes back as Structured carrying the text under RawKey.
func ParseValue(text string) (scene.PropertyValue, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, fmt.Errorf("empty value")
	case text == "true":
		return scene.Boolean(true), nil
	case text == "false":
		return scene.Boolean(false), nil
	case strings.HasPrefix(text, `"`):
		s, err := unquote(text)
		if err != nil {
			return nil, err
		}
		return scene.Text(s), nil
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return scene.Number(f), nil
	}

	name, args, ok := constructor(text)
	switch {
	case ok && name == "Vector3":
		f, err := floats(args, 3)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", text, err)
		}
		return scene.Vector3{X: f[0], Y: f[1], Z: f[2]}, nil
	case ok && name == "Transform3D":
		f, err := floats(args, 12)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", text, err)
		}
		return scene.Transform{Origin: scene.Vector3{X: f[9], Y: f[10], Z: f[11]}}, nil
	}

	tag := "Variant"
	switch {
	case ok:
		tag = name
	case text == "null":
		tag = "null"
	case strings.HasPrefix(text, "["):
		tag = "Array"
	case strings.HasPrefix(text, "{"):
		tag = "Dictionary"
	case strings.HasPrefix(text, "&"), strings.HasPrefix(text, "^"):
		tag = "StringName"
	}
	return scene.Structured{"type": tag, RawKey: text}, nil
}

// constructor splits Name(args) into its parts.
func constructor(text string) (string, string, bool) {
	open := strings.IndexByte(text, '(')
	if open <= 0 || !strings.HasSuffix(text, ")") {
		return "", "", false
	}
	name := text[:open]
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9') {
			return "", "", false
		}
	}
	return name, text[open+1 : len(text)-1], true
}

func floats(args string, n int) ([]float64, error) {
	parts := strings.Split(args, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d components, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
