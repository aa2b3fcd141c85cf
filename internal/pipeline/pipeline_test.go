package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tscnusd/internal/config"
	"tscnusd/internal/convert"
	"tscnusd/internal/crawler"
	"tscnusd/internal/git"
	"tscnusd/internal/usd"
)

const oneNodeScene = `[gd_scene format=3]

[node name="Level" type="Node3D"]
visible = true

[node name="Crate" type="MeshInstance3D" parent="."]
position = Vector3(1, 2, 3)
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestConvertFile_PicksDirection(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "level.tscn")
	writeFile(t, src, oneNodeScene)

	layer := filepath.Join(dir, "level.usda")
	res, err := ConvertFile(context.Background(), src, layer, "", convert.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Nodes)

	stage, err := usd.Open(layer)
	require.NoError(t, err)
	crate, err := stage.GetPrim("/Level/Crate")
	require.NoError(t, err)
	_, ok := crate.Attribute("position")
	assert.True(t, ok)

	back := filepath.Join(dir, "back.tscn")
	res, err = ConvertFile(context.Background(), layer, back, "", convert.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Nodes)
	assert.FileExists(t, back)

	_, err = ConvertFile(context.Background(), filepath.Join(dir, "notes.txt"), back, "", convert.DefaultOptions())
	assert.ErrorIs(t, err, convert.ErrConfiguration)
}

func TestBatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "level.tscn"), oneNodeScene)
	writeFile(t, filepath.Join(root, "rooms", "hall.tscn"), oneNodeScene)
	writeFile(t, filepath.Join(root, "rooms", "broken.tscn"), "[node name=\"A\" parent=\"Missing\"]\n")
	writeFile(t, filepath.Join(root, "props", "crate.usda"), "#usda 1.0\ndef Xform \"Crate\" {}\n")

	out := filepath.Join(t.TempDir(), "out")
	var seen int
	summary, err := Batch(context.Background(), root, out, BatchOptions{
		Target: crawler.KindUSD,
		OnItem: func(BatchItem) { seen++ },
	}, convert.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, summary.Items, 3)
	assert.Equal(t, 3, seen)
	assert.Equal(t, 1, summary.Failed)

	assert.FileExists(t, filepath.Join(out, "level.usda"))
	assert.FileExists(t, filepath.Join(out, "rooms", "hall.usda"))
	assert.NoFileExists(t, filepath.Join(out, "rooms", "broken.usda"))
	assert.NoFileExists(t, filepath.Join(out, "props", "crate.usda"))

	t.Run("to tscn", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "scenes")
		summary, err := Batch(context.Background(), root, out, BatchOptions{Target: crawler.KindTSCN}, convert.DefaultOptions())
		require.NoError(t, err)
		require.Len(t, summary.Items, 1)
		assert.Zero(t, summary.Failed)
		assert.FileExists(t, filepath.Join(out, "props", "crate.tscn"))
	})
}

func TestRunJobs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "level.tscn")
	writeFile(t, src, oneNodeScene)

	jobs := []config.Job{
		{Source: src, Dest: filepath.Join(dir, "level.usda")},
		{Source: filepath.Join(dir, "missing.tscn"), Dest: filepath.Join(dir, "missing.usda")},
		{Source: filepath.Join(dir, "level.usda"), Dest: filepath.Join(dir, "back.tscn")},
	}
	var seen []string
	summary, err := RunJobs(context.Background(), jobs, convert.DefaultOptions(), func(item BatchItem) {
		seen = append(seen, item.Dest)
	})
	require.NoError(t, err)
	require.Len(t, summary.Items, 3)
	assert.Equal(t, 1, summary.Failed)
	assert.ErrorIs(t, summary.Items[1].Err, convert.ErrSourceNotFound)
	assert.Equal(t, 2, summary.Items[2].Result.Nodes)
	assert.Equal(t, []string{jobs[0].Dest, jobs[1].Dest, jobs[2].Dest}, seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err = RunJobs(ctx, jobs, convert.DefaultOptions(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Items)
}

func TestOnlyChanged(t *testing.T) {
	files := []crawler.SceneFile{
		{Rel: "level.tscn"},
		{Rel: filepath.Join("rooms", "hall.tscn")},
		{Rel: "gone.tscn"},
	}
	changes := []git.ChangedFile{
		{Path: filepath.Join("rooms", "hall.tscn"), Status: 'M'},
		{Path: "gone.tscn", Status: 'D'},
		{Path: "README.md", Status: 'M'},
	}
	got := onlyChanged(files, changes)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join("rooms", "hall.tscn"), got[0].Rel)
}

func TestWatcher_ReconvertsOnChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scene.usda")
	dst := filepath.Join(dir, "scene.tscn")
	writeFile(t, src, "#usda 1.0\ndef Xform \"Root\" {}\n")

	results := make(chan int, 8)
	w := NewWatcher(src, dst, convert.DefaultOptions())
	w.Debounce = 20 * time.Millisecond
	w.OnResult = func(res *convert.Result, err error) {
		if err != nil {
			results <- -1
			return
		}
		results <- res.Nodes
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	next := func() int {
		select {
		case n := <-results:
			return n
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for conversion")
			return 0
		}
	}

	assert.Equal(t, 1, next())

	writeFile(t, src, "#usda 1.0\ndef Xform \"Root\" {\n    def Mesh \"Body\" {}\n}\n")
	assert.Equal(t, 2, next())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "level.tscn")
	writeFile(t, src, oneNodeScene)

	tree, err := LoadTree(src)
	require.NoError(t, err)
	text, err := Describe(tree)
	require.NoError(t, err)
	assert.Equal(t, "/Level [Node3D]\n"+
		"  .visible = true\n"+
		"  /Level/Crate [MeshInstance3D]\n"+
		"    .position = Vector3(1, 2, 3)\n", text)

	layer := filepath.Join(dir, "crate.usda")
	writeFile(t, layer, "#usda 1.0\ndef \"Crate\" {\n    float mass = 2.5\n}\n")
	tree, err = LoadTree(layer)
	require.NoError(t, err)
	text, err = Describe(tree)
	require.NoError(t, err)
	assert.Equal(t, "/Crate [-]\n  .mass = 2.5\n", text)
}
