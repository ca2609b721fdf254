package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openrouter"
	"github.com/spf13/cobra"

	"github.com/rand/conjecture/internal/analysis"
	"github.com/rand/conjecture/internal/archive"
	"github.com/rand/conjecture/internal/config"
	"github.com/rand/conjecture/internal/hypothesis"
	"github.com/rand/conjecture/internal/knowledge"
	"github.com/rand/conjecture/internal/oracle"
	"github.com/rand/conjecture/internal/research"
	"github.com/rand/conjecture/internal/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run [objective...]",
	Short: "Start or resume a research run",
	Long: `Start a research run for the given objective, or resume the one
persisted in the workspace when no objective is given.

Interrupting with Ctrl-C pauses the run between iterations; state is saved
and the next invocation picks up where it stopped.`,
	Example: `
# Start researching an objective
conjecture run "Find efficient prime number generation algorithms"

# Resume the interrupted run in the workspace
conjecture run

# Bound the run and tune it to the host
conjecture run --iterations 20 --auto-tune "Optimize sorting for nearly-sorted data"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if iterations, _ := cmd.Flags().GetInt("iterations"); iterations > 0 {
			cfg.MaxIterations = iterations
		}
		if depth, _ := cmd.Flags().GetString("depth"); depth != "" {
			cfg.AnalysisDepth = config.AnalysisDepth(depth)
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if autoTune, _ := cmd.Flags().GetBool("auto-tune"); autoTune {
			cfg = cfg.Derive(config.DetectResources())
		}

		logger, closeLogs, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLogs()

		// Ctrl-C cancels the context; the loop treats that as a pause,
		// saves state, and Run returns nil.
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		orchestrator, cleanup, err := buildOrchestrator(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		return orchestrator.Run(ctx, strings.Join(args, " "))
	},
}

func init() {
	runCmd.Flags().IntP("iterations", "n", 0, "Maximum iterations for this run (default from config)")
	runCmd.Flags().String("depth", "", "Analysis depth: basic, moderate or deep")
	runCmd.Flags().Bool("auto-tune", false, "Adjust limits to the host's RAM and CPU count")
}

// buildOrchestrator wires every component of the loop from the
// configuration. The returned cleanup closes the experiment archive.
func buildOrchestrator(cfg config.Config, logger *slog.Logger) (*research.Orchestrator, func(), error) {
	client := newOracle(cfg, logger)

	store, err := knowledge.NewStore(knowledge.Options{
		Dir:                cfg.CognitionsDir,
		MaxInsights:        cfg.MaxInsightsStored,
		RelevanceThreshold: cfg.InsightRelevanceThreshold,
		Logger:             logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open knowledge store: %w", err)
	}

	engine := hypothesis.NewEngine(hypothesis.Config{
		Oracle:       client,
		Insights:     store,
		PerIteration: cfg.ExperimentsPerIteration,
		Temperature:  cfg.HypothesisTemperature,
		Logger:       logger,
	})

	runner, err := sandbox.NewRunner(sandbox.Config{
		Timeout:       cfg.MaxExecutionTime,
		MemoryLimitMB: cfg.MaxMemoryMB,
		MaxOutputSize: cfg.MaxOutputSize,
		TempDir:       cfg.TempDir,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create sandbox: %w", err)
	}

	builder := sandbox.NewCodeBuilder(sandbox.CodeBuilderConfig{
		Oracle:         client,
		AllowedImports: cfg.AllowedImports,
		Logger:         logger,
	})

	analyzer := analysis.NewAnalyzer(analysis.Config{
		Depth:  cfg.AnalysisDepth,
		Oracle: client,
		Logger: logger,
	})

	archiveStore, err := archive.New(archive.Options{
		Path: filepath.Join(cfg.WorkspaceDir, "experiments.db"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open experiment archive: %w", err)
	}

	orchestrator, err := research.New(research.Options{
		Config:    cfg,
		Generator: engine,
		Builder:   builder,
		Runner:    runner,
		Analyzer:  analyzer,
		Knowledge: store,
		Archive:   archiveStore,
		Logger:    logger,
	})
	if err != nil {
		archiveStore.Close()
		return nil, nil, err
	}
	return orchestrator, func() { archiveStore.Close() }, nil
}

// newOracle builds the oracle client for the configured provider. Without a
// usable provider the loop still runs, served by deterministic fallback
// responses.
func newOracle(cfg config.Config, logger *slog.Logger) oracle.Client {
	inner, err := newProviderClient(cfg)
	if err != nil {
		logger.Warn("no oracle provider available, using fallback responses", "error", err)
	}
	return oracle.NewResilient(oracle.ResilientConfig{
		Client:   inner,
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
		Timeout:  time.Minute,
		Logger:   logger,
	})
}

func newProviderClient(cfg config.Config) (oracle.Client, error) {
	provider := cfg.Provider
	if provider == "" {
		switch {
		case os.Getenv("ANTHROPIC_API_KEY") != "":
			provider = "anthropic"
		case os.Getenv("OPENROUTER_API_KEY") != "":
			provider = "openrouter"
		default:
			return nil, fmt.Errorf("no API key found (set ANTHROPIC_API_KEY or OPENROUTER_API_KEY)")
		}
	}

	switch provider {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		p, err := anthropic.New(anthropic.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("create Anthropic provider: %w", err)
		}
		model := cfg.Model
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		client, err := oracle.NewFantasyClient(oracle.FantasyConfig{Provider: p, Model: model})
		if err != nil {
			return nil, err
		}
		return client, nil

	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
		}
		p, err := openrouter.New(openrouter.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("create OpenRouter provider: %w", err)
		}
		model := cfg.Model
		if model == "" {
			model = "anthropic/claude-haiku-4.5"
		}
		client, err := oracle.NewFantasyClient(oracle.FantasyConfig{Provider: p, Model: model})
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
