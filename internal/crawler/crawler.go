package crawler

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Kind is the side of a conversion a scene file belongs to.
type Kind string

const (
	KindUSD  Kind = "usd"
	KindTSCN Kind = "tscn"
)

// SceneFile is a convertible file found by a scan.
type SceneFile struct {
	Path string
	// Rel is Path relative to the scan root.
	Rel  string
	Kind Kind
}

// Crawler scans a directory tree for scene files.
type Crawler struct {
	ignored []string
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored: []string{".git", ".godot", ".import", "node_modules", "vendor"},
	}
}

// Ignore adds directory names that are never descended into.
func (c *Crawler) Ignore(names ...string) {
	c.ignored = append(c.ignored, names...)
}

// KindOf classifies path by extension. Crate files are not convertible and
// are not reported.
func KindOf(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".usda", ".usd", ".usdz":
		return KindUSD, true
	case ".tscn":
		return KindTSCN, true
	}
	return "", false
}

// ScanProject walks root and streams every scene file to onFile, in lexical
// order. Returning an error from onFile stops the walk.
func (c *Crawler) ScanProject(root string, onFile func(SceneFile) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		kind, ok := KindOf(d.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}
		return onFile(SceneFile{Path: path, Rel: rel, Kind: kind})
	})
}

// Collect returns the scene files under root of the given kind.
func (c *Crawler) Collect(root string, kind Kind) ([]SceneFile, error) {
	var files []SceneFile
	err := c.ScanProject(root, func(f SceneFile) error {
		if f.Kind == kind {
			files = append(files, f)
		}
		return nil
	})
	return files, err
}
