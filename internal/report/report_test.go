package report

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_SaveAndLoad(t *testing.T) {
	r := New("tscn_to_usd", "/tmp/scene.tscn", "/tmp/scene.usda")
	h := r.BeginStage("resolve")
	r.EndStage(h, "", map[string]float64{"nodes": 2, " ": 9}, []string{" ", "two roots"}, nil)
	h = r.BeginStage("save")
	r.EndStage(h, "ok", nil, nil, errors.New("disk full"))

	r.AddSignal("dropped_property", "map", "INFO", "meta was dropped", 1)
	r.AddSignal("dropped_property", "map", "warning", "raw was dropped", 1)
	r.AddSignal("", "map", "info", "ignored without a code", 0)
	r.SetCounts(2, 1, 2)
	r.Fail(errors.New("disk full"))

	path := filepath.Join(t.TempDir(), "reports", r.FileName())
	require.NoError(t, r.Save(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "scene."))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.ID, loaded.ID)
	assert.Equal(t, "error", loaded.Status)
	require.Len(t, loaded.Stages, 2)
	assert.Equal(t, "ok", loaded.Stages[0].Status)
	assert.Equal(t, map[string]float64{"nodes": 2}, loaded.Stages[0].Counters)
	assert.Equal(t, []string{"two roots"}, loaded.Stages[0].Notes)
	assert.Equal(t, "error", loaded.Stages[1].Status)
	assert.Equal(t, "disk full", loaded.Stages[1].Error)

	require.Len(t, loaded.Signals, 2)
	assert.Equal(t, SeverityWarning, loaded.Signals[0].Severity)
	assert.Equal(t, SeverityInfo, loaded.Signals[1].Severity)

	assert.Equal(t, 2, loaded.Summary.StageCount)
	assert.Equal(t, 1, loaded.Summary.FailedStages)
	assert.Equal(t, 2, loaded.Summary.Dropped)
	assert.Equal(t, 1, loaded.Summary.SignalsBySeverity[SeverityWarning])
}

func TestReport_NilIsNoop(t *testing.T) {
	var r *Report
	r.EndStage(StageHandle{name: "x"}, "ok", nil, nil, nil)
	r.AddSignal("c", "s", "info", "m", 0)
	r.Fail(errors.New("x"))
	r.SetCounts(1, 1, 1)
	assert.NoError(t, r.Save(filepath.Join(t.TempDir(), "r.json")))
}
