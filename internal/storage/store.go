package storage

import (
	"context"
	"errors"
	"time"
)

var ErrRunNotFound = errors.New("storage: run not found")

// Run is one journaled conversion.
type Run struct {
	ID         string
	Direction  string
	Source     string
	Dest       string
	Status     string
	ErrorKind  string
	Error      string
	Nodes      int
	Attributes int
	ReportPath string
	StartedAt  time.Time
	FinishedAt time.Time
	Dropped    []DroppedProperty
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// DroppedProperty is a property a run could not carry into its output.
type DroppedProperty struct {
	Node     string `json:"node"`
	Property string `json:"property"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// Journal persists the history of conversion runs.
type Journal interface {
	// RecordRun upserts a run and replaces its dropped properties.
	RecordRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// RunsForSource returns the runs that converted source, newest first.
	RunsForSource(ctx context.Context, source string) ([]*Run, error)

	Close() error
}
