// Package report records what happened during one conversion: stage
// timings, counters and signals about lossy output.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

type Signal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Notes      []string           `json:"notes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type Summary struct {
	StageCount        int            `json:"stage_count"`
	FailedStages      int            `json:"failed_stages"`
	Nodes             int            `json:"nodes"`
	Attributes        int            `json:"attributes"`
	Dropped           int            `json:"dropped"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// Report describes a single conversion run.
type Report struct {
	ID          string        `json:"id"`
	Version     string        `json:"version"`
	Direction   string        `json:"direction"`
	Source      string        `json:"source"`
	Dest        string        `json:"dest"`
	GeneratedAt string        `json:"generated_at"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Stages      []StageMetric `json:"stages"`
	Signals     []Signal      `json:"signals,omitempty"`
	Summary     Summary       `json:"summary"`
}

type StageHandle struct {
	name    string
	started time.Time
}

func New(direction, source, dest string) *Report {
	return &Report{
		ID:          uuid.NewString(),
		Version:     "v1",
		Direction:   direction,
		Source:      source,
		Dest:        dest,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Status:      "ok",
		Stages:      []StageMetric{},
		Signals:     []Signal{},
	}
}

func (r *Report) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *Report) EndStage(h StageHandle, status string, counters map[string]float64, notes []string, err error) {
	if r == nil || strings.TrimSpace(h.name) == "" {
		return
	}
	if strings.TrimSpace(status) == "" {
		status = "ok"
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     status,
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
		Notes:      cleanNotes(notes),
	}
	if err != nil {
		m.Error = err.Error()
		if status == "ok" {
			m.Status = "error"
		}
	}
	r.Stages = append(r.Stages, m)
}

func (r *Report) AddSignal(code, stage, severity, message string, value float64) {
	if r == nil {
		return
	}
	s := Signal{
		Code:     strings.TrimSpace(code),
		Stage:    strings.TrimSpace(stage),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Message:  strings.TrimSpace(message),
		Value:    value,
	}
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

// Fail marks the run as failed.
func (r *Report) Fail(err error) {
	if r == nil || err == nil {
		return
	}
	r.Status = "error"
	r.Error = err.Error()
}

// SetCounts records the totals of the run.
func (r *Report) SetCounts(nodes, attributes, dropped int) {
	if r == nil {
		return
	}
	r.Summary.Nodes = nodes
	r.Summary.Attributes = attributes
	r.Summary.Dropped = dropped
}

func (r *Report) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	severityCount := map[string]int{
		SeverityCritical: 0,
		SeverityWarning:  0,
		SeverityInfo:     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			if r.Signals[i].Stage == r.Signals[j].Stage {
				return r.Signals[i].Code < r.Signals[j].Code
			}
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}

	r.Summary.StageCount = len(r.Stages)
	r.Summary.FailedStages = failed
	r.Summary.SignalsBySeverity = severityCount
}

// Save finalizes the report and writes it as JSON. A nil report is a no-op.
func (r *Report) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FileName is the conventional file name for a report in a report dir.
func (r *Report) FileName() string {
	base := filepath.Base(r.Source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "." + r.ID[:8] + ".report.json"
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanNotes(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}
