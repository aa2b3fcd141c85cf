package crawler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
}

func TestCrawler_ScanProject(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"level.tscn",
		"props/crate.usda",
		"props/barrel.USDZ",
		"props/rock.usdc",
		"props/notes.txt",
		".godot/imported/cache.tscn",
		"addons/node_modules/x.usda",
	)

	c := NewCrawler()
	var rels []string
	err := c.ScanProject(root, func(f SceneFile) error {
		rels = append(rels, filepath.ToSlash(f.Rel))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"level.tscn", "props/barrel.USDZ", "props/crate.usda"}, rels)

	t.Run("Collect filters by kind", func(t *testing.T) {
		usd, err := c.Collect(root, KindUSD)
		require.NoError(t, err)
		assert.Len(t, usd, 2)

		tscn, err := c.Collect(root, KindTSCN)
		require.NoError(t, err)
		require.Len(t, tscn, 1)
		assert.Equal(t, filepath.Join(root, "level.tscn"), tscn[0].Path)
	})

	t.Run("Ignore adds directories", func(t *testing.T) {
		c := NewCrawler()
		c.Ignore("props")
		files, err := c.Collect(root, KindUSD)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("callback error stops the walk", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := c.ScanProject(root, func(SceneFile) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf("a/b.usd")
	assert.True(t, ok)
	assert.Equal(t, KindUSD, k)

	_, ok = KindOf("a/b.usdc")
	assert.False(t, ok)
}
