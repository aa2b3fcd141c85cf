package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"tscnusd/internal/config"
	"tscnusd/internal/convert"
	"tscnusd/internal/crawler"
	"tscnusd/internal/ir"
	"tscnusd/internal/pipeline"
	"tscnusd/internal/scene"
	"tscnusd/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "tscnusd",
		Short: "Convert scenes between Godot TSCN and USD",
	}
	configPath  string
	journalPath string
	reportDir   string
	force       bool
	logLevel    string

	out = termenv.NewOutput(os.Stdout)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tscnusd.yaml", "Path to the configuration file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "Path to the run journal database (SQLite); overrides config")
	rootCmd.PersistentFlags().StringVar(&reportDir, "report", "", "Directory for per-run JSON reports; overrides config")
	rootCmd.PersistentFlags().BoolVarP(&force, "force", "f", false, "Overwrite existing USD layers")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	tscnToUSDCmd.Flags().String("tree", "", "Read the scene tree from a .json or .tscn file instead of the source")
	watchCmd.Flags().String("tree", "", "Read the scene tree from a .json or .tscn file instead of the source")
	batchCmd.Flags().String("to", "usd", "Target format: usd or tscn")
	batchCmd.Flags().String("out", "out", "Output directory")
	batchCmd.Flags().String("ext", "", "Output extension (default .usda or .tscn)")
	batchCmd.Flags().String("changed", "", "Only convert files git reports as changed since this ref")
	historyCmd.Flags().Int("limit", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().String("source", "", "Only show runs for this source file")

	rootCmd.AddCommand(usdToTSCNCmd)
	rootCmd.AddCommand(tscnToUSDCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(exportTreeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

// session is the configuration, logger and journal shared by one command.
type session struct {
	cfg     *config.Config
	opts    convert.Options
	journal storage.Journal
}

func setup() *session {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if journalPath != "" {
		cfg.Journal.Path = journalPath
	}
	if reportDir != "" {
		cfg.Report.Dir = reportDir
	}
	if force {
		cfg.Convert.Overwrite = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := pipeline.NewLogger(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger)

	journal, err := pipeline.OpenJournal(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("Failed to initialize journal: %v", err)
	}

	opts := pipeline.Options(cfg, logger)
	opts.Journal = journal
	return &session{cfg: cfg, opts: opts, journal: journal}
}

func (s *session) Close() {
	if s.journal != nil {
		s.journal.Close()
		s.journal = nil
	}
}

// exit closes the session and ends the process with code.
func (s *session) exit(code int) {
	s.Close()
	os.Exit(code)
}

func (s *session) fatalf(format string, args ...any) {
	s.Close()
	log.Fatalf(format, args...)
}

// convertFailure prints err and, for names USD cannot hold, the node to
// rename.
func convertFailure(prefix string, err error) {
	failure("%s%v", prefix, err)
	var invalid *scene.InvalidNameError
	if errors.As(err, &invalid) {
		warn("   -> rename node %q: USD prim names allow only letters, digits and _ (no spaces)", invalid.Node)
	}
}

func success(format string, args ...any) {
	fmt.Println(out.String(fmt.Sprintf(format, args...)).Foreground(termenv.ANSIGreen).String())
}

func warn(format string, args ...any) {
	fmt.Println(out.String(fmt.Sprintf(format, args...)).Foreground(termenv.ANSIYellow).String())
}

func failure(format string, args ...any) {
	fmt.Println(out.String(fmt.Sprintf(format, args...)).Foreground(termenv.ANSIRed).Bold().String())
}

func printResult(res *convert.Result, start time.Time) {
	success("✅ %s (%v)", res.Message, time.Since(start).Round(time.Millisecond))
	if len(res.Dropped) > 0 {
		warn("⚠️  %d properties had no USD representation:", len(res.Dropped))
		for _, d := range res.Dropped {
			fmt.Printf("  -> %s.%s (%s): %s\n", d.Node, d.Property, d.Kind, d.Reason)
		}
	}
	if res.ReportPath != "" {
		fmt.Printf("📄 Report: %s\n", res.ReportPath)
	}
}

var usdToTSCNCmd = &cobra.Command{
	Use:   "usd2tscn <source.usda|.usdz> <dest.tscn>",
	Short: "Convert a USD layer into a Godot text scene",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := setup()
		defer s.Close()

		fmt.Printf("🔄 Converting %s -> %s\n", args[0], args[1])
		start := time.Now()
		res, err := convert.USDToTSCN(cmd.Context(), args[0], args[1], s.opts)
		if err != nil {
			convertFailure("❌ ", err)
			s.exit(1)
		}
		printResult(res, start)
	},
}

var tscnToUSDCmd = &cobra.Command{
	Use:   "tscn2usd <source.tscn> <dest.usda|.usdz>",
	Short: "Convert a Godot text scene into a USD layer",
	Long: `Convert a Godot text scene into a USD layer.

Node names become USD prim names, which allow only letters, digits and
underscores and cannot start with a digit. A scene with a node such as
"Main Camera" is rejected as a whole; rename the node before converting.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := setup()
		defer s.Close()

		treePath, _ := cmd.Flags().GetString("tree")
		fmt.Printf("🔄 Converting %s -> %s\n", args[0], args[1])
		start := time.Now()
		res, err := pipeline.ConvertFile(cmd.Context(), args[0], args[1], treePath, s.opts)
		if err != nil {
			convertFailure("❌ ", err)
			s.exit(1)
		}
		printResult(res, start)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.usda|.usdz|.tscn|.json>",
	Short: "Print the resolved scene tree of a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tree, err := pipeline.LoadTree(args[0])
		if err != nil {
			log.Fatalf("Failed to load %s: %v", args[0], err)
		}
		text, err := pipeline.Describe(tree)
		if err != nil {
			log.Fatalf("Failed to resolve %s: %v", args[0], err)
		}
		fmt.Print(text)
	},
}

var exportTreeCmd = &cobra.Command{
	Use:   "export-tree <source> <dest.json>",
	Short: "Write the scene tree of a file as a JSON tree document",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		tree, err := pipeline.LoadTree(args[0])
		if err != nil {
			log.Fatalf("Failed to load %s: %v", args[0], err)
		}
		if err := ir.WriteFile(args[1], tree); err != nil {
			log.Fatalf("Failed to export tree: %v", err)
		}
		success("✅ Exported %d nodes to %s", tree.Len(), args[1])
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Convert every scene file under a directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := setup()
		defer s.Close()

		to, _ := cmd.Flags().GetString("to")
		outDir, _ := cmd.Flags().GetString("out")
		ext, _ := cmd.Flags().GetString("ext")
		changed, _ := cmd.Flags().GetString("changed")

		target := crawler.Kind(strings.ToLower(to))
		if target != crawler.KindUSD && target != crawler.KindTSCN {
			s.fatalf("Unsupported target %q (want usd or tscn)", to)
		}

		fmt.Printf("📂 Scanning directory: %s\n", args[0])
		start := time.Now()
		summary, err := pipeline.Batch(cmd.Context(), args[0], outDir, pipeline.BatchOptions{
			Target:  target,
			Ext:     ext,
			Changed: changed,
			OnItem: func(item pipeline.BatchItem) {
				if item.Err != nil {
					convertFailure("  ❌ "+item.Source+": ", item.Err)
					return
				}
				fmt.Printf("  -> %s\n", item.Result.Message)
			},
		}, s.opts)
		if err != nil {
			s.fatalf("Batch failed: %v", err)
		}

		done := len(summary.Items) - summary.Failed
		if summary.Failed > 0 {
			warn("⚠️  Converted %d of %d files in %v", done, len(summary.Items), time.Since(start).Round(time.Millisecond))
			s.exit(1)
		}
		success("🎉 Converted %d files in %v. Output: %s", done, time.Since(start).Round(time.Millisecond), outDir)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <source> <dest>",
	Short: "Convert a file and convert it again whenever it changes",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := setup()
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := pipeline.NewWatcher(args[0], args[1], s.opts)
		w.Tree, _ = cmd.Flags().GetString("tree")
		w.OnResult = func(res *convert.Result, err error) {
			if err != nil {
				convertFailure("❌ ", err)
				return
			}
			success("✅ %s", res.Message)
		}

		fmt.Printf("👀 Watching %s (Ctrl+C to stop)\n", filepath.Clean(args[0]))
		if err := w.Run(ctx); err != nil {
			s.fatalf("Watch failed: %v", err)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversions from the run journal",
	Run: func(cmd *cobra.Command, args []string) {
		s := setup()
		defer s.Close()
		if s.journal == nil {
			s.fatalf("No journal configured (set --journal or journal.path)")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		source, _ := cmd.Flags().GetString("source")

		ctx := context.Background()
		var (
			runs []*storage.Run
			err  error
		)
		if source != "" {
			runs, err = s.journal.RunsForSource(ctx, source)
		} else {
			runs, err = s.journal.ListRuns(ctx, limit)
		}
		if err != nil {
			s.fatalf("Failed to read journal: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("📭 No runs recorded.")
			return
		}

		for _, r := range runs {
			line := fmt.Sprintf("%s  %-11s  %s -> %s  nodes=%d attrs=%d dropped=%d  %v",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Direction, r.Source, r.Dest,
				r.Nodes, r.Attributes, len(r.Dropped), r.Duration().Round(time.Millisecond))
			if r.Status != "ok" {
				failure("❌ %s  %s", line, r.ErrorKind)
				continue
			}
			fmt.Println("✅ " + line)
		}
	},
}
