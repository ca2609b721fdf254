// Package config defines the research system configuration.
// Configuration is an explicit value handed to each component at
// construction; nothing mutates process-wide state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AnalysisDepth controls how much work the analyzer does per result.
type AnalysisDepth string

const (
	DepthBasic    AnalysisDepth = "basic"
	DepthModerate AnalysisDepth = "moderate"
	DepthDeep     AnalysisDepth = "deep"
)

// Config holds all tunable parameters for a research run.
type Config struct {
	// WorkspaceDir is the root directory for all persisted artifacts.
	WorkspaceDir string

	// ExperimentsDir holds one JSON document per experiment.
	ExperimentsDir string

	// CognitionsDir holds the knowledge documents (insights, patterns,
	// algorithms and failures).
	CognitionsDir string

	// TempDir holds transient files such as generated experiment programs.
	TempDir string

	// Provider selects the oracle provider ("anthropic", "openrouter").
	// Empty means no oracle; the deterministic fallback serves all queries.
	Provider string

	// Model is the oracle model name, opaque to the core loop.
	Model string

	// MaxExecutionTime is the hard wall-clock limit per experiment.
	MaxExecutionTime time.Duration

	// MaxMemoryMB is the peak RSS limit per experiment subprocess.
	MaxMemoryMB int

	// MaxOutputSize caps captured stdout/stderr, in characters.
	MaxOutputSize int

	// MaxIterations is the number of research iterations before a normal
	// exit.
	MaxIterations int

	// ExperimentsPerIteration bounds how many hypotheses are executed per
	// iteration.
	ExperimentsPerIteration int

	// HypothesisTemperature is the sampling temperature for hypothesis
	// generation oracle calls.
	HypothesisTemperature float64

	// AnalysisDepth selects basic, moderate or deep result analysis.
	// Moderate and deep add an oracle call per successful result.
	AnalysisDepth AnalysisDepth

	// AllowedImports is the import whitelist enforced by the execution
	// harness.
	AllowedImports []string

	// IterationDelay is the interruptible pause between iterations.
	IterationDelay time.Duration

	// RetryAttempts and RetryDelay configure oracle call retries.
	RetryAttempts int
	RetryDelay    time.Duration

	// MinImprovementThreshold is the relative execution-time delta below
	// which two results are considered similar (0.05 = 5%).
	MinImprovementThreshold float64

	// MaxInsightsStored caps the insight store; lowest relevance entries
	// are evicted beyond this.
	MaxInsightsStored int

	// InsightRelevanceThreshold is the minimum query similarity for an
	// insight to be retrieved.
	InsightRelevanceThreshold float64

	// LogLevel is the slog level name ("debug", "info", "warn", "error").
	LogLevel string
}

// Default returns the baseline configuration rooted at dir.
func Default(dir string) Config {
	workspace := filepath.Join(dir, "research_workspace")
	return Config{
		WorkspaceDir:            workspace,
		ExperimentsDir:          filepath.Join(workspace, "experiments"),
		CognitionsDir:           filepath.Join(workspace, "cognitions"),
		TempDir:                 filepath.Join(workspace, "temp"),
		MaxExecutionTime:        30 * time.Second,
		MaxMemoryMB:             1024,
		MaxOutputSize:           10000,
		MaxIterations:           100,
		ExperimentsPerIteration: 3,
		HypothesisTemperature:   0.7,
		AnalysisDepth:           DepthBasic,
		AllowedImports: []string{
			"math", "random", "itertools", "collections",
			"statistics", "time", "json",
		},
		IterationDelay:            2 * time.Second,
		RetryAttempts:             3,
		RetryDelay:                5 * time.Second,
		MinImprovementThreshold:   0.05,
		MaxInsightsStored:         500,
		InsightRelevanceThreshold: 0.7,
		LogLevel:                  "info",
	}
}

// Load builds a Config from defaults, a .env file in dir (if present) and
// CONJECTURE_* environment variables, in that order of precedence.
func Load(dir string) (Config, error) {
	// Missing .env is fine; the environment may carry everything.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := Default(dir)

	if v := os.Getenv("CONJECTURE_WORKSPACE"); v != "" {
		cfg.WorkspaceDir = v
		cfg.ExperimentsDir = filepath.Join(v, "experiments")
		cfg.CognitionsDir = filepath.Join(v, "cognitions")
		cfg.TempDir = filepath.Join(v, "temp")
	}
	cfg.Provider = os.Getenv("CONJECTURE_PROVIDER")
	if v := os.Getenv("CONJECTURE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v, err := envInt("CONJECTURE_MAX_EXECUTION_SECONDS"); err == nil {
		cfg.MaxExecutionTime = time.Duration(v) * time.Second
	}
	if v, err := envInt("CONJECTURE_MAX_MEMORY_MB"); err == nil {
		cfg.MaxMemoryMB = v
	}
	if v, err := envInt("CONJECTURE_MAX_ITERATIONS"); err == nil {
		cfg.MaxIterations = v
	}
	if v, err := envInt("CONJECTURE_EXPERIMENTS_PER_ITERATION"); err == nil {
		cfg.ExperimentsPerIteration = v
	}
	if v := os.Getenv("CONJECTURE_ANALYSIS_DEPTH"); v != "" {
		cfg.AnalysisDepth = AnalysisDepth(v)
	}
	if v := os.Getenv("CONJECTURE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fills zero values with defaults and rejects nonsensical settings.
func (c *Config) Validate() error {
	if c.MaxExecutionTime <= 0 {
		c.MaxExecutionTime = 30 * time.Second
	}
	if c.MaxMemoryMB <= 0 {
		c.MaxMemoryMB = 1024
	}
	if c.MaxOutputSize <= 0 {
		c.MaxOutputSize = 10000
	}
	if c.ExperimentsPerIteration <= 0 {
		c.ExperimentsPerIteration = 3
	}
	if c.MaxInsightsStored <= 0 {
		c.MaxInsightsStored = 500
	}
	switch c.AnalysisDepth {
	case "", DepthBasic, DepthModerate, DepthDeep:
		if c.AnalysisDepth == "" {
			c.AnalysisDepth = DepthBasic
		}
	default:
		return fmt.Errorf("invalid analysis depth %q", c.AnalysisDepth)
	}
	if c.MinImprovementThreshold <= 0 || c.MinImprovementThreshold >= 1 {
		c.MinImprovementThreshold = 0.05
	}
	if c.InsightRelevanceThreshold <= 0 || c.InsightRelevanceThreshold >= 1 {
		c.InsightRelevanceThreshold = 0.7
	}
	return nil
}

// SystemResources describes the host hardware relevant to tuning.
type SystemResources struct {
	TotalRAMMB int
	NumCPU     int
}

// DetectResources reads the host's resources.
func DetectResources() SystemResources {
	return SystemResources{
		TotalRAMMB: detectRAMMB(),
		NumCPU:     runtime.NumCPU(),
	}
}

// Derive adjusts a configuration for the given hardware. It is a pure
// function: the receiver is not modified.
func (c Config) Derive(res SystemResources) Config {
	ramGB := float64(res.TotalRAMMB) / 1024

	switch {
	case ramGB > 0 && ramGB < 8:
		c.MaxMemoryMB = 512
		c.ExperimentsPerIteration = 1
	case ramGB > 16:
		c.MaxMemoryMB = 2048
		c.ExperimentsPerIteration = 5
	}

	if res.NumCPU > 0 && res.NumCPU < 4 {
		c.MaxExecutionTime = 60 * time.Second
	}

	return c
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s not set", key)
	}
	return strconv.Atoi(v)
}
