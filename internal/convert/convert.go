// Package convert holds the two conversion entry points. Each call is
// synchronous and independent: it acquires one stage handle, releases it on
// every path and returns either a Result or a single *Error.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tscnusd/internal/mapper"
	"tscnusd/internal/report"
	"tscnusd/internal/scene"
	"tscnusd/internal/storage"
	"tscnusd/internal/tscn"
	"tscnusd/internal/usd"
)

const (
	OpUSDToTSCN = "usd_to_tscn"
	OpTSCNToUSD = "tscn_to_usd"
)

// Options configures a conversion. The zero value is usable; see
// DefaultOptions for the settings the CLI starts from.
type Options struct {
	// Overwrite lets TSCNToUSD replace an existing layer.
	Overwrite bool
	// Format forces the output layer format; empty follows the extension.
	Format      usd.Format
	DefaultPrim string
	UpAxis      string

	// Indent and ResourceType shape TSCN output. Indent zero means the
	// default depth indentation; negative writes flat scenes.
	Indent       int
	ResourceType string

	Logger *slog.Logger
	// Journal, when set, records every run including failed ones.
	Journal storage.Journal
	// ReportDir, when set, receives a JSON report per run.
	ReportDir string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		DefaultPrim:  mapper.AutoDefaultPrim,
		Indent:       tscn.DefaultIndent,
		ResourceType: tscn.DefaultResourceType,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Result describes a successful conversion.
type Result struct {
	// Message is the human-readable summary, e.g.
	// "processed 2 nodes: scene.tscn -> scene.usda".
	Message    string
	Nodes      int
	Attributes int
	Dropped    []mapper.DroppedProperty
	Report     *report.Report
	// ReportPath is set when the report was written to Options.ReportDir.
	ReportPath string
}

// USDToTSCN reads the USD layer at src, maps its prims into a scene tree and
// writes the tree to dst as a text scene.
func USDToTSCN(ctx context.Context, src, dst string, opts Options) (res *Result, err error) {
	c := begin(OpUSDToTSCN, src, dst, opts)
	defer func() { res, err = c.finish(ctx, res, err, recover()) }()

	if err := c.checkSource(ctx); err != nil {
		return nil, err
	}

	h := c.rep.BeginStage("open")
	stage, err := usd.Open(src)
	if err != nil {
		c.rep.EndStage(h, "error", nil, nil, err)
		return nil, wrap(c.op, src, err, StoreOpenFailed)
	}
	defer stage.Close()
	c.rep.EndStage(h, "ok", nil, []string{string(stage.Format())}, nil)

	if err := ctx.Err(); err != nil {
		return nil, wrap(c.op, src, err, Canceled)
	}

	h = c.rep.BeginStage("map")
	tree := mapper.FromStage(stage)
	nodes, err := tree.Resolve()
	if err != nil {
		c.rep.EndStage(h, "error", nil, nil, err)
		return nil, wrap(c.op, src, err, Internal)
	}
	attrs := 0
	for _, n := range nodes {
		attrs += len(n.Properties)
	}
	c.rep.EndStage(h, "ok", map[string]float64{
		"nodes":      float64(len(nodes)),
		"properties": float64(attrs),
	}, nil, nil)
	for _, n := range nodes {
		for _, name := range n.PropertyNames() {
			if n.Properties[name].Kind() == scene.KindOpaque {
				c.rep.AddSignal("opaque_property", "map", report.SeverityInfo,
					fmt.Sprintf("%s.%s carried as raw text", n.Path, name), 1)
			}
		}
	}

	h = c.rep.BeginStage("write")
	data, err := tscn.Marshal(tree, tscn.WriteOptions{
		Indent:       opts.Indent,
		ResourceType: opts.ResourceType,
		Source:       src,
	})
	if err == nil {
		err = os.WriteFile(dst, data, 0o644)
	}
	if err != nil {
		c.rep.EndStage(h, "error", nil, nil, err)
		return nil, wrap(c.op, dst, err, StoreSaveFailed)
	}
	c.rep.EndStage(h, "ok", map[string]float64{"bytes": float64(len(data))}, nil, nil)

	return c.result(len(nodes), attrs, nil), nil
}

// TSCNToUSD defines the prims of tree in a new USD layer at dst. tree is
// required; a nil tree fails with ConfigurationError before any file is
// touched. src must exist and names the scene the tree was read from.
//
// Mapping is all-or-nothing: the tree is fully resolved before any prim is
// defined, and nothing is written to dst unless every node maps.
func TSCNToUSD(ctx context.Context, src, dst string, tree *scene.Tree, opts Options) (res *Result, err error) {
	if tree == nil {
		return nil, &Error{
			Kind: ConfigurationError,
			Op:   OpTSCNToUSD,
			Path: src,
			Err:  errors.New("a parsed scene tree is required"),
		}
	}

	c := begin(OpTSCNToUSD, src, dst, opts)
	defer func() { res, err = c.finish(ctx, res, err, recover()) }()

	if err := c.checkSource(ctx); err != nil {
		return nil, err
	}

	h := c.rep.BeginStage("create")
	stage, err := usd.CreateNew(dst, usd.CreateOptions{Overwrite: opts.Overwrite, Format: opts.Format})
	if err != nil {
		c.rep.EndStage(h, "error", nil, nil, err)
		return nil, wrap(c.op, dst, err, StoreOpenFailed)
	}
	defer stage.Close()
	c.rep.EndStage(h, "ok", nil, []string{string(stage.Format())}, nil)

	h = c.rep.BeginStage("map")
	stats, err := mapper.ToStage(tree, stage, mapper.Options{
		DefaultPrim: opts.DefaultPrim,
		UpAxis:      opts.UpAxis,
		Logger:      c.log,
	})
	if err != nil {
		c.rep.EndStage(h, "error", nil, nil, err)
		return nil, wrap(c.op, src, err, Internal)
	}
	c.rep.EndStage(h, "ok", map[string]float64{
		"nodes":      float64(stats.Nodes),
		"attributes": float64(stats.Attributes),
		"dropped":    float64(len(stats.Dropped)),
	}, nil, nil)
	for _, d := range stats.Dropped {
		c.rep.AddSignal("property_dropped", "map", report.SeverityWarning,
			fmt.Sprintf("%s.%s (%s): %s", d.Node, d.Property, d.Kind, d.Reason), 1)
	}

	if err := ctx.Err(); err != nil {
		return nil, wrap(c.op, dst, err, Canceled)
	}

	h = c.rep.BeginStage("save")
	if err := stage.Save(); err != nil {
		c.rep.EndStage(h, "error", nil, nil, err)
		return nil, wrap(c.op, dst, err, StoreSaveFailed)
	}
	c.rep.EndStage(h, "ok", nil, nil, nil)

	return c.result(stats.Nodes, stats.Attributes, stats.Dropped), nil
}

// conversion carries the bookkeeping shared by both entry points.
type conversion struct {
	op, src, dst string
	opts         Options
	log          *slog.Logger
	rep          *report.Report
	started      time.Time
}

func begin(op, src, dst string, opts Options) *conversion {
	return &conversion{
		op:      op,
		src:     src,
		dst:     dst,
		opts:    opts,
		log:     opts.logger().With("op", op, "source", src, "dest", dst),
		rep:     report.New(op, src, dst),
		started: time.Now().UTC(),
	}
}

func (c *conversion) checkSource(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wrap(c.op, c.src, err, Canceled)
	}
	if _, err := os.Stat(c.src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Kind: SourceNotFound, Op: c.op, Path: c.src, Err: fs.ErrNotExist}
		}
		return &Error{Kind: StoreOpenFailed, Op: c.op, Path: c.src, Err: err}
	}
	return nil
}

func (c *conversion) result(nodes, attrs int, dropped []mapper.DroppedProperty) *Result {
	return &Result{
		Message:    fmt.Sprintf("processed %d nodes: %s -> %s", nodes, c.src, c.dst),
		Nodes:      nodes,
		Attributes: attrs,
		Dropped:    dropped,
	}
}

// finish turns a panic into an Internal error, then records the run in the
// report and the journal. Neither bookkeeping step can fail the conversion.
func (c *conversion) finish(ctx context.Context, res *Result, err error, recovered any) (*Result, error) {
	if recovered != nil {
		res = nil
		err = &Error{Kind: Internal, Op: c.op, Path: c.src, Err: fmt.Errorf("panic: %v", recovered)}
	}
	if err != nil {
		err = wrap(c.op, c.src, err, Internal)
		res = nil
		c.rep.Fail(err)
		c.log.Error("conversion failed", "kind", KindOf(err), "error", err)
	} else {
		c.rep.SetCounts(res.Nodes, res.Attributes, len(res.Dropped))
		if len(res.Dropped) > 0 {
			c.log.Warn("lossy conversion", "dropped", len(res.Dropped))
		}
		c.log.Info("conversion finished", "nodes", res.Nodes, "attributes", res.Attributes)
	}

	var reportPath string
	if c.opts.ReportDir != "" {
		reportPath = filepath.Join(c.opts.ReportDir, c.rep.FileName())
		if saveErr := c.rep.Save(reportPath); saveErr != nil {
			c.log.Warn("failed to save report", "path", reportPath, "error", saveErr)
			reportPath = ""
		}
	} else {
		c.rep.Finalize()
	}

	if c.opts.Journal != nil {
		run := &storage.Run{
			ID:         c.rep.ID,
			Direction:  c.op,
			Source:     c.src,
			Dest:       c.dst,
			Status:     "ok",
			ReportPath: reportPath,
			StartedAt:  c.started,
			FinishedAt: time.Now().UTC(),
		}
		if err != nil {
			run.Status = "error"
			run.ErrorKind = string(KindOf(err))
			run.Error = err.Error()
		} else {
			run.Nodes = res.Nodes
			run.Attributes = res.Attributes
			for _, d := range res.Dropped {
				run.Dropped = append(run.Dropped, storage.DroppedProperty{
					Node:     d.Node,
					Property: d.Property,
					Kind:     string(d.Kind),
					Reason:   d.Reason,
				})
			}
		}
		// A cancelled ctx must not stop the run from being journaled.
		if jErr := c.opts.Journal.RecordRun(context.WithoutCancel(ctx), run); jErr != nil {
			c.log.Warn("failed to journal run", "error", jErr)
		}
	}

	if res != nil {
		res.Report = c.rep
		res.ReportPath = reportPath
	}
	return res, err
}
