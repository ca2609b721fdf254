package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rand/conjecture/internal/hypothesis"
	"github.com/rand/conjecture/internal/oracle"
)

// Code generation runs cooler than hypothesis generation.
const codegenTemperature = 0.3

// CodeBuilder turns a hypothesis into a runnable harness-wrapped program.
type CodeBuilder struct {
	oracle         oracle.Client
	allowedImports []string
	logger         *slog.Logger
}

// CodeBuilderConfig configures a CodeBuilder.
type CodeBuilderConfig struct {
	// Oracle completes code sketches. Nil means sketches run as-is and
	// sketch-less hypotheses get the fallback program.
	Oracle oracle.Client

	// AllowedImports is the whitelist baked into generation prompts and
	// the harness.
	AllowedImports []string

	Logger *slog.Logger
}

// NewCodeBuilder creates a code builder.
func NewCodeBuilder(cfg CodeBuilderConfig) *CodeBuilder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CodeBuilder{
		oracle:         cfg.Oracle,
		allowedImports: cfg.AllowedImports,
		logger:         cfg.Logger,
	}
}

// Build produces executable code for the hypothesis. Never fails: when the
// oracle yields nothing usable, a sketch runs wrapped as-is and a sketch-less
// hypothesis falls back to a canned experiment.
func (b *CodeBuilder) Build(ctx context.Context, h hypothesis.Hypothesis) string {
	if h.CodeSketch != "" {
		return b.completeSketch(ctx, h)
	}
	return b.fromDescription(ctx, h)
}

const completeSketchPrompt = `Complete this code sketch into a working Python experiment:

Hypothesis: %s
Approach: %s

Code sketch:
%s

Requirements:
1. Make it fully executable with test data
2. Include timing measurements
3. Print results in JSON format
4. Handle errors gracefully
5. Stay within these imports: %v

Complete code:`

func (b *CodeBuilder) completeSketch(ctx context.Context, h hypothesis.Hypothesis) string {
	if b.oracle != nil {
		prompt := fmt.Sprintf(completeSketchPrompt, h.Description, h.Approach, h.CodeSketch, b.allowedImports)
		if code, ok := b.generate(ctx, prompt); ok {
			return Wrap(code, b.allowedImports)
		}
	}
	return Wrap(h.CodeSketch, b.allowedImports)
}

const fromDescriptionPrompt = `Generate a Python experiment for this hypothesis:

Hypothesis: %s
Expected outcome: %s
Metrics to measure: %v

Requirements:
1. Create a complete, runnable experiment
2. Generate test data if needed
3. Measure and compare performance/results
4. Output results as JSON
5. Use only these imports: %v

Code:`

func (b *CodeBuilder) fromDescription(ctx context.Context, h hypothesis.Hypothesis) string {
	if b.oracle != nil {
		prompt := fmt.Sprintf(fromDescriptionPrompt, h.Description, h.ExpectedOutcome, h.Metrics, b.allowedImports)
		if code, ok := b.generate(ctx, prompt); ok {
			return Wrap(code, b.allowedImports)
		}
	}
	return FallbackProgram
}

func (b *CodeBuilder) generate(ctx context.Context, prompt string) (string, bool) {
	response, err := b.oracle.Query(ctx, prompt, oracle.Options{Temperature: codegenTemperature})
	if err != nil {
		b.logger.Warn("code generation failed", "error", err)
		return "", false
	}
	blocks := oracle.ExtractCodeBlocks(response)
	if len(blocks) == 0 {
		return "", false
	}
	return blocks[0], true
}
