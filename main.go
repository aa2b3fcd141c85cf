package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"tscnusd/internal/config"
	"tscnusd/internal/pipeline"
)

// Runs the conversion jobs listed in tscnusd.yaml.
func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig("tscnusd.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Jobs) == 0 {
		fmt.Println("📭 No jobs configured in tscnusd.yaml.")
		return
	}

	ctx := context.Background()

	// 2. Initialize Components
	logger := pipeline.NewLogger(os.Stderr, cfg.Log.Level)
	journal, err := pipeline.OpenJournal(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("Failed to initialize journal: %v", err)
	}
	opts := pipeline.Options(cfg, logger)
	opts.Journal = journal

	// 3. Run Jobs
	fmt.Printf("🚀 Running %d conversion jobs...\n", len(cfg.Jobs))
	summary, err := pipeline.RunJobs(ctx, cfg.Jobs, opts, func(item pipeline.BatchItem) {
		if item.Err != nil {
			fmt.Printf("❌ %v\n", item.Err)
			return
		}
		fmt.Printf("✅ %s\n", item.Result.Message)
		if len(item.Result.Dropped) > 0 {
			fmt.Printf("  -> %d properties dropped\n", len(item.Result.Dropped))
		}
	})
	if journal != nil {
		journal.Close()
	}
	if err != nil {
		log.Fatalf("Jobs interrupted: %v", err)
	}

	if summary.Failed > 0 {
		fmt.Printf("❌ %d of %d jobs failed\n", summary.Failed, len(cfg.Jobs))
		os.Exit(1)
	}
	fmt.Println("🎉 All jobs finished.")
}
