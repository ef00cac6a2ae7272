// Package main implements the auditor CLI: a thin front end over the
// pkg/audit core API. Process-boundary concerns — exit codes, flags,
// on-disk formats — are this command's job, not the core's (spec.md §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/auditcore/auditcore/internal/config"
	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/audit"
	"github.com/auditcore/auditcore/pkg/auditstore"
	"github.com/auditcore/auditcore/pkg/correlation/llmcollab"
	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/llmclient"
	"github.com/auditcore/auditcore/pkg/registry"
	"github.com/auditcore/auditcore/pkg/taxonomy"
)

var (
	verbose    bool
	configPath string
	geminiKey  string
	storePath  string

	mode        string
	projectRoot string
	globalTO    time.Duration
	perToolTO   time.Duration
	llmEnabled  bool
	customNames []string
	outputPath  string
)

var rootCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Multi-analyzer smart-contract security audit orchestrator",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := zc.Build()
		if err != nil {
			return fmt.Errorf("logger init: %w", err)
		}
		logging.Initialize(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an options YAML file")
	rootCmd.PersistentFlags().StringVar(&geminiKey, "gemini-api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key for the LLM collaborator")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "optional SQLite path to persist completed audits")

	runCmd.Flags().StringVar(&mode, "mode", "STANDARD", "audit mode: QUICK|STANDARD|FULL|CUSTOM")
	runCmd.Flags().StringVar(&projectRoot, "project-root", "", "project root for multi-file contracts")
	runCmd.Flags().DurationVar(&globalTO, "global-timeout", 0, "whole-audit deadline (0 disables)")
	runCmd.Flags().DurationVar(&perToolTO, "per-tool-timeout", 0, "per-adapter deadline cap (0 uses config default)")
	runCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable the LLM confidence pass")
	runCmd.Flags().StringSliceVar(&customNames, "tools", nil, "explicit adapter names for --mode=CUSTOM")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the result JSON here instead of stdout")

	rootCmd.AddCommand(listToolsCmd, probeCmd, runCmd)
}

var listToolsCmd = &cobra.Command{
	Use:   "list-tools",
	Short: "List every registered adapter and its static metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAuditor()
		if err != nil {
			return err
		}
		for _, t := range a.ListTools() {
			fmt.Printf("%-12s %-10s %-9s optional=%-5t remote=%t\n", t.Name, t.Version, t.Category, t.Optional, t.RemoteService)
		}
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <tool-name>",
	Short: "Check one adapter's live availability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAuditor()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		status, err := a.ProbeTool(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <contract-path>",
	Short: "Run a full audit against one contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAuditor()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Bridge ctx's signal-driven cancellation into the cooperative
		// Cancel flag the orchestrator checks both before scheduling each
		// adapter and against every already-running one, so a real Ctrl+C
		// produces the documented CANCELLED result. Adapters already running
		// when the signal arrives are stopped and report TIMEOUT.
		cancelCh := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(cancelCh)
		}()

		input := finding.ContractInput{Path: args[0], ProjectRoot: projectRoot}
		opts := audit.RunOptions{
			GlobalTimeout:  globalTO,
			PerToolTimeout: perToolTO,
			CustomNames:    customNames,
			LLMEnabled:     &llmEnabled,
			Cancel:         cancelCh,
		}

		result, err := a.RunAudit(ctx, input, audit.Mode(mode), opts)
		if err != nil {
			return err
		}

		if storePath != "" {
			store, err := auditstore.Open(storePath)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(ctx, result); err != nil {
				return err
			}
		}

		body, err := audit.ToJSON(result)
		if err != nil {
			return err
		}
		if outputPath == "" {
			fmt.Println(string(body))
			return nil
		}
		return os.WriteFile(outputPath, body, 0o644)
	},
}

// buildAuditor assembles the core API object from CLI flags: config file,
// default adapter registry, default taxonomy, and an optional LLM
// collaborator wired only when an API key is present.
func buildAuditor() (*audit.Auditor, error) {
	opts := config.Default()
	if configPath != "" {
		var err error
		opts, err = config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	tables, err := taxonomy.Default()
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	var collab llmcollab.Collaborator
	var client llmclient.Client
	if genaiClient := llmClientOrNil(); genaiClient != nil {
		collab = &llmcollab.Agent{Client: genaiClient}
		client = genaiClient
	}

	reg := registry.Default(client)
	return audit.New(reg, tables, collab, opts), nil
}

func llmClientOrNil() *llmcollab.GenAIClient {
	if geminiKey == "" {
		return nil
	}
	client, err := llmcollab.NewGenAIClient(context.Background(), llmcollab.DefaultGeminiConfig(geminiKey))
	if err != nil {
		logging.For(logging.CategoryAudit).Warn("gemini client init failed, AI adapter and LLM pass disabled", zap.Error(err))
		return nil
	}
	return client
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
