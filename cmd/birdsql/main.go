// Package main implements the birdsql CLI for asking natural-language
// questions against SQLite databases and running benchmark datasets.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/birdsql/internal/agent"
	"github.com/fyrsmithlabs/birdsql/internal/config"
	"github.com/fyrsmithlabs/birdsql/internal/database"
	"github.com/fyrsmithlabs/birdsql/internal/logging"
	"github.com/fyrsmithlabs/birdsql/internal/orchestrator"
	"github.com/fyrsmithlabs/birdsql/internal/telemetry"
)

var (
	configPath string
	debugMode  bool

	// version information, set at build time
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "birdsql",
	Short: "Multi-agent text-to-SQL over SQLite databases",
	Long: `birdsql turns natural-language questions into validated SQL.

A pipeline of specialized agents interprets the question, retrieves the
database schema, generates a query, executes it, validates the results
against the question, and repairs failures within a bounded retry budget.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "use direct agent invocation instead of group chat")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(benchCmd)
}

// pipeline bundles everything a command needs to process questions.
type pipeline struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *database.Store
	orch   *orchestrator.Orchestrator
}

func (p *pipeline) close() {
	p.store.Close()
	_ = p.logger.Sync()
}

// buildPipeline loads configuration and wires the agent registry and
// orchestrator behind it.
func buildPipeline() (*pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debugMode {
		cfg.DebugMode = true
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	model, err := agent.NewModel(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init model client: %w", err)
	}

	store := database.NewStore(cfg.Database.Path, cfg.Database.QueryTimeout)
	registry := agent.NewRegistry(model, store, cfg, logger)
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	orch := orchestrator.New(registry, cfg,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics))

	return &pipeline{cfg: cfg, logger: logger, store: store, orch: orch}, nil
}
