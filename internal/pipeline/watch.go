package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tscnusd/internal/convert"
)

const DefaultDebounce = 200 * time.Millisecond

// Watcher re-runs one conversion whenever its source (or tree file)
// changes. Conversions run one at a time on the watching goroutine.
type Watcher struct {
	Source string
	Dest   string
	// Tree is an optional tree document used instead of parsing Source.
	Tree     string
	Options  convert.Options
	Debounce time.Duration
	// OnResult is called after every conversion, failed ones included.
	OnResult func(*convert.Result, error)
}

func NewWatcher(src, dst string, opts convert.Options) *Watcher {
	return &Watcher{
		Source:   src,
		Dest:     dst,
		Options:  opts,
		Debounce: DefaultDebounce,
	}
}

// RunOnce performs a single conversion. The destination is always
// overwritten since every run after the first replaces its own output.
func (w *Watcher) RunOnce(ctx context.Context) (*convert.Result, error) {
	opts := w.Options
	opts.Overwrite = true
	res, err := ConvertFile(ctx, w.Source, w.Dest, w.Tree, opts)
	if w.OnResult != nil {
		w.OnResult(res, err)
	}
	return res, err
}

// Run converts once, then again after every change until ctx is done.
// Conversion failures are reported through OnResult and do not stop the
// watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer fw.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range []string{w.Source, w.Tree} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		// Editors often replace files on save, so watch the directory.
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := fw.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	log := w.Options.Logger
	if log == nil {
		log = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	_, _ = w.RunOnce(ctx)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debug("source changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_, _ = w.RunOnce(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		}
	}
}
