// Package cli implements the study-coach CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rcliao/study-coach/internal/config"
	"github.com/rcliao/study-coach/internal/dataset"
	"github.com/rcliao/study-coach/internal/llm"
	"github.com/rcliao/study-coach/internal/orchestrator"
	"github.com/rcliao/study-coach/internal/rules"
	"github.com/rcliao/study-coach/internal/store"
)

var (
	dbPath    string
	rulesPath string
	verbose   bool

	cfg    config.Config
	logger *zap.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "study-coach",
	Short: "Adaptive study coach core",
	Long: "Rule-based dispatch with model escalation for study content: quiz questions,\n" +
		"flashcards, summaries, and a feedback-driven quality-control loop. SQLite-backed.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if rulesPath != "" {
			cfg.RulesPath = rulesPath
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $STUDY_COACH_DB or ~/.study-coach/study.db)")
	RootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "", "Rules CSV path (default: $STUDY_COACH_RULES or built-in rules)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath)
}

func newOrchestrator() (*orchestrator.Orchestrator, error) {
	var client llm.Client
	if cfg.MockModel {
		client = &llm.Mock{Responses: []string{"[]"}}
	} else {
		c, err := llm.NewOpenAIClient(llm.Settings{
			Model:   cfg.ModelName,
			APIKey:  cfg.ModelAPIKey,
			BaseURL: cfg.ModelBaseURL,
		})
		if err != nil {
			return nil, err
		}
		client = c
	}
	return orchestrator.New(client, cfg.Retries, logger), nil
}

func loadRules() (*rules.Base, error) {
	if cfg.RulesPath == "" {
		return rules.Default(), nil
	}
	f, err := os.Open(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return rules.Load(f)
}

func newDataset() (*dataset.Service, *store.SQLiteStore) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	orch, err := newOrchestrator()
	if err != nil {
		s.Close()
		exitErr("model client", err)
	}
	return dataset.New(s, orch, logger), s
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
