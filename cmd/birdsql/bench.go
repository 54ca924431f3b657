package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/birdsql/internal/benchmark"
)

var (
	benchDataset string
	benchOutput  string
	benchWorkers int
	benchLimit   int
)

func init() {
	benchCmd.Flags().StringVar(&benchDataset, "dataset", "", "path to the question dataset (JSON array)")
	benchCmd.Flags().StringVar(&benchOutput, "output", "results.jsonl", "path for per-question results (JSONL)")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 4, "concurrent questions")
	benchCmd.Flags().IntVar(&benchLimit, "limit", 0, "process only the first N questions (0 = all)")
	_ = benchCmd.MarkFlagRequired("dataset")
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a benchmark dataset through the pipeline",
	Long: `Process every question in a dataset and write per-question results
as JSONL, followed by a per-status summary.

Examples:
  # Run the BIRD dev split
  birdsql bench --dataset data/dev/dev.json --output results.jsonl

  # Smoke-test the first 10 questions with 2 workers
  birdsql bench --dataset data/dev/dev.json --limit 10 --workers 2`,
	RunE: runBench,
}

func runBench(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	questions, err := benchmark.LoadDataset(benchDataset)
	if err != nil {
		return err
	}
	if benchLimit > 0 && benchLimit < len(questions) {
		questions = questions[:benchLimit]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := benchmark.NewRunner(p.orch, benchWorkers, p.logger)
	records, summary, runErr := runner.Run(ctx, questions)

	out, err := os.Create(benchOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()
	if err := benchmark.WriteRecords(out, records); err != nil {
		return err
	}

	fmt.Printf("\nProcessed %d questions in %s\n", summary.Total, summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("Validated: %d (%.1f%%)\n", summary.Validated, 100*float64(summary.Validated)/float64(summary.Total))
	for status, count := range summary.ByStatus {
		fmt.Printf("  %-22s %d\n", status, count)
	}
	return runErr
}
