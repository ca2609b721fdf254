package hypothesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/rand/conjecture/internal/knowledge"
	"github.com/rand/conjecture/internal/oracle"
)

// InsightSource provides stored insights relevant to a query.
type InsightSource interface {
	RelevantInsights(query string, limit int) []knowledge.RelevantInsight
}

// Config configures an Engine.
type Config struct {
	// Oracle drives the primary generator. Nil disables it, leaving the
	// template and mutation generators.
	Oracle oracle.Client

	// Insights supplies prior knowledge for the oracle prompt. Optional.
	Insights InsightSource

	// PerIteration is how many experiments each iteration runs; the engine
	// returns twice this many candidates. Defaults to 3.
	PerIteration int

	// Temperature for oracle generation. Defaults to 0.7.
	Temperature float64

	// Rand overrides the randomness source for tests.
	Rand *rand.Rand

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	Logger *slog.Logger
}

// Engine generates and ranks hypotheses for a research objective.
type Engine struct {
	oracle       oracle.Client
	insights     InsightSource
	perIteration int
	temperature  float64
	rng          *rand.Rand
	clock        func() time.Time
	logger       *slog.Logger
}

// NewEngine creates a hypothesis engine.
func NewEngine(cfg Config) *Engine {
	if cfg.PerIteration <= 0 {
		cfg.PerIteration = 3
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		oracle:       cfg.Oracle,
		insights:     cfg.Insights,
		perIteration: cfg.PerIteration,
		temperature:  cfg.Temperature,
		rng:          cfg.Rand,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
}

// Generate produces ranked hypothesis candidates for the objective, at most
// twice the per-iteration experiment count. The recent slice is expected
// newest-first.
func (e *Engine) Generate(ctx context.Context, objective string, recent []Prior) []Hypothesis {
	var insights []knowledge.RelevantInsight
	if e.insights != nil {
		insights = e.insights.RelevantInsights(objective, 5)
	}

	successes, failures := partitionApproaches(recent)

	var candidates []Hypothesis
	candidates = append(candidates, e.fromOracle(ctx, objective, insights, successes, failures)...)
	candidates = append(candidates, e.fromTemplates(objective)...)
	if base, ok := latestSuccess(recent); ok {
		candidates = append(candidates, mutate(base, e.rng, e.clock()))
	}

	e.score(candidates, recent)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if limit := 2 * e.perIteration; len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func partitionApproaches(recent []Prior) (successes, failures []string) {
	for _, p := range recent {
		if p.Succeeded {
			successes = append(successes, p.Approach)
		} else {
			failures = append(failures, p.Approach)
		}
	}
	return successes, failures
}

// latestSuccess returns the most recent successful prior, if any.
func latestSuccess(recent []Prior) (Prior, bool) {
	for _, p := range recent {
		if p.Succeeded {
			return p, true
		}
	}
	return Prior{}, false
}

const oraclePromptFormat = `Research Objective: %s

Recent Insights:
%s

Recent Patterns:
- Successful approaches: %v
- Failed approaches: %v

Generate 3 specific, testable hypotheses for experiments. Each hypothesis should:
1. Be directly related to the research objective
2. Be implementable in Python code
3. Have measurable outcomes
4. Build on insights or avoid past failures

Format each hypothesis as:
HYPOTHESIS: [Brief description]
APPROACH: [Technical approach]
CODE_SKETCH:
` + "```python" + `
[Brief code outline]
` + "```" + `
EXPECTED_OUTCOME: [What we expect to observe]
METRICS: [How to measure success]
---`

func (e *Engine) fromOracle(ctx context.Context, objective string, insights []knowledge.RelevantInsight, successes, failures []string) []Hypothesis {
	if e.oracle == nil {
		return nil
	}

	insightJSON, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		insightJSON = []byte("[]")
	}
	prompt := fmt.Sprintf(oraclePromptFormat, objective, insightJSON, successes, failures)

	response, err := e.oracle.Query(ctx, prompt, oracle.Options{Temperature: e.temperature})
	if err != nil {
		e.logger.Warn("oracle hypothesis generation failed", "error", err)
		return nil
	}
	return parseOracleResponse(response, e.clock())
}

func (e *Engine) fromTemplates(objective string) []Hypothesis {
	class := classifyObjective(objective)
	templates := hypothesisTemplates[class]

	var hypotheses []Hypothesis
	for _, idx := range e.rng.Perm(len(templates))[:2] {
		hypotheses = append(hypotheses, Hypothesis{
			Timestamp:       e.clock(),
			Source:          SourceTemplate,
			Description:     fillTemplate(templates[idx], e.rng),
			Approach:        fmt.Sprintf("Template-based approach for %s", class),
			CodeSketch:      codeSketches[class],
			ExpectedOutcome: "Improved performance or new insights",
			Metrics:         []string{"execution_time", "accuracy", "complexity"},
		})
	}
	return hypotheses
}

// score ranks candidates multiplicatively: approaches that already failed
// are halved, oracle output is favored, and well-instrumented hypotheses
// get a small boost.
func (e *Engine) score(candidates []Hypothesis, recent []Prior) {
	failed := map[string]bool{}
	for _, p := range recent {
		if !p.Succeeded {
			failed[p.Approach] = true
		}
	}

	for i := range candidates {
		score := 1.0
		if failed[candidates[i].Approach] {
			score *= 0.5
		}
		if candidates[i].Source == SourceOracle {
			score *= 1.2
		}
		if len(candidates[i].Metrics) > 2 {
			score *= 1.1
		}
		candidates[i].Score = score
	}
}
