package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"tscnusd/internal/config"
	"tscnusd/internal/convert"
	"tscnusd/internal/storage"
	"tscnusd/internal/usd"
)

// NewLogger returns a text logger writing to w at the named level. Unknown
// levels fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Options builds conversion options from cfg. Journal is left for the
// caller to open.
func Options(cfg *config.Config, log *slog.Logger) convert.Options {
	opts := convert.DefaultOptions()
	opts.Overwrite = cfg.Convert.Overwrite
	opts.Format = usd.Format(strings.ToLower(cfg.Convert.Format))
	opts.DefaultPrim = cfg.Convert.DefaultPrim
	opts.UpAxis = strings.ToUpper(cfg.Convert.UpAxis)
	opts.Indent = cfg.TSCN.Indent
	if cfg.TSCN.ResourceType != "" {
		opts.ResourceType = cfg.TSCN.ResourceType
	}
	opts.ReportDir = cfg.Report.Dir
	opts.Logger = log
	return opts
}

// OpenJournal opens the run journal at path. An empty path disables the
// journal and returns nil.
func OpenJournal(path string) (storage.Journal, error) {
	if path == "" {
		return nil, nil
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return store, nil
}
