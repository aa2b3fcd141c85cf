// Package pipeline drives conversions over files: single files picked by
// extension, whole directories, and watched sources.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tscnusd/internal/config"
	"tscnusd/internal/convert"
	"tscnusd/internal/crawler"
	"tscnusd/internal/git"
	"tscnusd/internal/scene"
)

// ConvertFile converts src to dst, choosing the direction from src's
// extension. For scene sources the tree comes from treePath when set and
// from src itself otherwise.
func ConvertFile(ctx context.Context, src, dst, treePath string, opts convert.Options) (*convert.Result, error) {
	kind, ok := crawler.KindOf(src)
	if !ok {
		return nil, &convert.Error{
			Kind: convert.ConfigurationError,
			Op:   "convert",
			Path: src,
			Err:  fmt.Errorf("cannot tell the conversion direction from %q", filepath.Ext(src)),
		}
	}

	if kind == crawler.KindUSD {
		return convert.USDToTSCN(ctx, src, dst, opts)
	}

	var (
		tree *scene.Tree
		err  error
	)
	if treePath != "" {
		tree, err = convert.ReadTree(treePath)
	} else {
		tree, err = convert.ParseTSCN(src)
	}
	if err != nil {
		return nil, err
	}
	return convert.TSCNToUSD(ctx, src, dst, tree, opts)
}

// BatchItem is the outcome for one file of a batch.
type BatchItem struct {
	Source string
	Dest   string
	Result *convert.Result
	Err    error
}

// BatchSummary totals a batch run.
type BatchSummary struct {
	Items  []BatchItem
	Failed int
}

// BatchOptions selects what a batch converts.
type BatchOptions struct {
	// Target is the kind of file produced.
	Target crawler.Kind
	// Ext overrides the output extension.
	Ext string
	// Changed limits the batch to files git reports as changed since this
	// ref. Deleted files are skipped.
	Changed string
	// OnItem, when set, sees each outcome as it happens.
	OnItem func(BatchItem)
}

// Batch converts every scene file under root that produces bo.Target into
// outDir, mirroring the directory layout. A failing file does not stop the
// batch.
func Batch(ctx context.Context, root, outDir string, bo BatchOptions, opts convert.Options) (*BatchSummary, error) {
	from := crawler.KindTSCN
	if bo.Target == crawler.KindTSCN {
		from = crawler.KindUSD
	}
	ext := bo.Ext
	if ext == "" {
		ext = DefaultExt(bo.Target)
	}

	files, err := crawler.NewCrawler().Collect(root, from)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if bo.Changed != "" {
		changes, err := git.GetChangedFiles(root, bo.Changed)
		if err != nil {
			return nil, err
		}
		files = onlyChanged(files, changes)
	}

	summary := &BatchSummary{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rel := strings.TrimSuffix(f.Rel, filepath.Ext(f.Rel)) + ext
		item := BatchItem{Source: f.Path, Dest: filepath.Join(outDir, rel)}
		if err := os.MkdirAll(filepath.Dir(item.Dest), 0755); err != nil {
			item.Err = err
		} else {
			item.Result, item.Err = ConvertFile(ctx, item.Source, item.Dest, "", opts)
		}
		if item.Err != nil {
			summary.Failed++
		}
		summary.Items = append(summary.Items, item)
		if bo.OnItem != nil {
			bo.OnItem(item)
		}
	}
	return summary, nil
}

// RunJobs converts each configured job in order. A failing job does not
// stop the others.
func RunJobs(ctx context.Context, jobs []config.Job, opts convert.Options, onItem func(BatchItem)) (*BatchSummary, error) {
	summary := &BatchSummary{}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		item := BatchItem{Source: job.Source, Dest: job.Dest}
		item.Result, item.Err = ConvertFile(ctx, job.Source, job.Dest, job.Tree, opts)
		if item.Err != nil {
			summary.Failed++
		}
		summary.Items = append(summary.Items, item)
		if onItem != nil {
			onItem(item)
		}
	}
	return summary, nil
}

func onlyChanged(files []crawler.SceneFile, changes []git.ChangedFile) []crawler.SceneFile {
	changed := make(map[string]bool, len(changes))
	for _, c := range changes {
		if !c.Deleted() {
			changed[filepath.Clean(c.Path)] = true
		}
	}
	var out []crawler.SceneFile
	for _, f := range files {
		if changed[filepath.Clean(f.Rel)] {
			out = append(out, f)
		}
	}
	return out
}

// DefaultExt is the output extension used for a target kind.
func DefaultExt(target crawler.Kind) string {
	if target == crawler.KindTSCN {
		return ".tscn"
	}
	return ".usda"
}
