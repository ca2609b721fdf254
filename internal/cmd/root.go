// Package cmd implements the conjecture command-line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/rand/conjecture/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "conjecture",
	Short: "Autonomous research loop over generated experiments",
	Long: `Conjecture runs an unattended research loop: it proposes hypotheses
about a stated objective, executes each one as an isolated, resource-bounded
experiment, analyzes the outcome, and folds what it learned back into the
next round of proposals.

All state lives under the workspace directory, so an interrupted run resumes
where it left off.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace root (default ./research_workspace)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		runCmd,
		reportCmd,
		historyCmd,
		knowledgeCmd,
	)
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd)
}

// loadConfig builds the effective configuration from the environment and the
// command's persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return config.Config{}, err
	}

	if workspace, _ := cmd.Flags().GetString("workspace"); workspace != "" {
		cfg.WorkspaceDir = workspace
		cfg.ExperimentsDir = filepath.Join(workspace, "experiments")
		cfg.CognitionsDir = filepath.Join(workspace, "cognitions")
		cfg.TempDir = filepath.Join(workspace, "temp")
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// setupLogger routes logs to stderr for the operator and, when the workspace
// exists, to a JSON log file for later inspection of long unattended runs.
func setupLogger(cfg config.Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.LogLevel)

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}

	cleanup := func() {}
	if err := os.MkdirAll(cfg.WorkspaceDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create workspace: %w", err)
	}
	logFile, err := os.OpenFile(
		filepath.Join(cfg.WorkspaceDir, "research.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		handlers = append(handlers, slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}))
		cleanup = func() { logFile.Close() }
	}

	logger := slog.New(slogmulti.Fanout(handlers...))
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
