package convert

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"tscnusd/internal/ir"
	"tscnusd/internal/scene"
	"tscnusd/internal/tscn"
)

// ParseTSCN reads a text scene into a tree ready for TSCNToUSD.
func ParseTSCN(path string) (*scene.Tree, error) {
	doc, err := tscn.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: SourceNotFound, Op: "parse_tscn", Path: path, Err: fs.ErrNotExist}
		}
		return nil, wrap("parse_tscn", path, err, DecodeError)
	}
	if doc.Skipped > 0 {
		slog.Debug("tscn sections skipped", "path", path, "count", doc.Skipped)
	}
	return doc.Tree, nil
}

// ReadTree loads a tree from a .tscn scene or a .json tree document.
func ReadTree(path string) (*scene.Tree, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tscn":
		return ParseTSCN(path)
	case ".json":
		tree, dropped, err := ir.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &Error{Kind: SourceNotFound, Op: "read_tree", Path: path, Err: fs.ErrNotExist}
			}
			return nil, wrap("read_tree", path, err, DecodeError)
		}
		for _, d := range dropped {
			slog.Debug("tree value dropped", "path", path, "node", d.Node, "property", d.Property)
		}
		return tree, nil
	}
	return nil, &Error{
		Kind: ConfigurationError,
		Op:   "read_tree",
		Path: path,
		Err:  errors.New("tree files must be .tscn or .json"),
	}
}
