package usd

import (
	"fmt"
	"strings"
)

// Path is an absolute prim path such as /Root/Child. The pseudo-root is "/".
type Path string

// AbsoluteRoot is the pseudo-root path.
const AbsoluteRoot Path = "/"

// ParsePath validates s as an absolute prim path.
func ParsePath(s string) (Path, error) {
	if s == string(AbsoluteRoot) {
		return AbsoluteRoot, nil
	}
	if !strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, s)
	}
	for _, elem := range strings.Split(s[1:], "/") {
		if !ValidName(elem) {
			return "", fmt.Errorf("%w: %q has invalid element %q", ErrInvalidPath, s, elem)
		}
	}
	return Path(s), nil
}

// Name returns the last element of the path.
func (p Path) Name() string {
	if p == AbsoluteRoot {
		return ""
	}
	s := string(p)
	return s[strings.LastIndex(s, "/")+1:]
}

// Parent returns the parent path. The parent of a top-level prim is the
// pseudo-root.
func (p Path) Parent() Path {
	s := string(p)
	i := strings.LastIndex(s, "/")
	if i <= 0 {
		return AbsoluteRoot
	}
	return Path(s[:i])
}

// AppendChild returns the path of a child named name.
func (p Path) AppendChild(name string) Path {
	if p == AbsoluteRoot {
		return Path("/" + name)
	}
	return Path(string(p) + "/" + name)
}

// Elements returns the names along the path, outermost first.
func (p Path) Elements() []string {
	if p == AbsoluteRoot || p == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(p), "/"), "/")
}

func (p Path) String() string { return string(p) }

// ValidName reports whether name is a legal prim or property identifier
// element: a letter or underscore followed by letters, digits or underscores.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// ValidPropertyName is like ValidName but allows ':'-separated namespaces
// such as xformOp:translate.
func ValidPropertyName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ":") {
		if !ValidName(part) {
			return false
		}
	}
	return true
}
