package hypothesis

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rand/conjecture/internal/oracle"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	if cfg.Clock == nil {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		cfg.Clock = func() time.Time { return now }
	}
	return NewEngine(cfg)
}

func TestClassifyObjective(t *testing.T) {
	tests := []struct {
		objective string
		want      string
	}{
		{"Optimize sorting for large arrays", classOptimization},
		{"Improve cache locality", classOptimization},
		{"Find a pattern in prime gaps", classDiscovery},
		{"Discover correlations in the data", classDiscovery},
		{"Design a shortest path algorithm", classAlgorithm},
		{"", classAlgorithm},
		// Optimization keywords win when both classes match.
		{"Find an efficient traversal", classOptimization},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyObjective(tt.objective), "objective %q", tt.objective)
	}
}

func TestParseOracleResponse(t *testing.T) {
	response := `HYPOTHESIS: Memoize the recursive calls
APPROACH: Dynamic programming
CODE_SKETCH:
` + "```python" + `
cache = {}
` + "```" + `
EXPECTED_OUTCOME: Faster repeated lookups
METRICS: execution_time, cache_hits, accuracy
---
Some commentary without a hypothesis marker.
---
HYPOTHESIS: Use iterative deepening
APPROACH: Bounded search
EXPECTED_OUTCOME: Lower memory footprint
METRICS: memory_mb
---`

	now := time.Now()
	got := parseOracleResponse(response, now)
	require.Len(t, got, 2)

	assert.Equal(t, "Memoize the recursive calls", got[0].Description)
	assert.Equal(t, "Dynamic programming", got[0].Approach)
	assert.Equal(t, "cache = {}", got[0].CodeSketch)
	assert.Equal(t, []string{"execution_time", "cache_hits", "accuracy"}, got[0].Metrics)
	assert.Equal(t, SourceOracle, got[0].Source)

	assert.Equal(t, "Use iterative deepening", got[1].Description)
	assert.Empty(t, got[1].CodeSketch)
}

func TestParseOracleResponse_DropsFragmentsWithoutDescription(t *testing.T) {
	response := `HYPOTHESIS:
APPROACH: Approach with no description line content
---`
	assert.Empty(t, parseOracleResponse(response, time.Now()))
}

func TestGenerate_FallbackAlwaysYieldsHypotheses(t *testing.T) {
	e := newTestEngine(t, Config{
		Oracle:       oracle.NewResilient(oracle.ResilientConfig{}),
		PerIteration: 3,
	})

	got := e.Generate(context.Background(), "Optimize matrix multiplication", nil)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 6)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score, "candidates must be sorted by score")
	}

	// The canned oracle hypothesis outranks the template ones.
	assert.Equal(t, SourceOracle, got[0].Source)
}

func TestGenerate_NoOracle(t *testing.T) {
	e := newTestEngine(t, Config{PerIteration: 3})

	got := e.Generate(context.Background(), "Design a scheduling algorithm", nil)
	require.Len(t, got, 2)
	for _, h := range got {
		assert.Equal(t, SourceTemplate, h.Source)
		assert.NotEmpty(t, h.Description)
		assert.NotEmpty(t, h.CodeSketch)
	}
}

func TestGenerate_MutationRequiresRecentSuccess(t *testing.T) {
	e := newTestEngine(t, Config{PerIteration: 5})

	onlyFailures := []Prior{
		{Description: "first idea", Approach: "brute force", Succeeded: false},
		{Description: "second idea", Approach: "greedy", Succeeded: false},
	}
	got := e.Generate(context.Background(), "anything", onlyFailures)
	for _, h := range got {
		assert.NotEqual(t, SourceMutation, h.Source)
	}

	withSuccess := append([]Prior{
		{Description: "winning idea", Approach: "memoization", CodeSketch: "def f(): pass", Succeeded: true},
	}, onlyFailures...)
	got = e.Generate(context.Background(), "anything", withSuccess)

	var mutations []Hypothesis
	for _, h := range got {
		if h.Source == SourceMutation {
			mutations = append(mutations, h)
		}
	}
	require.Len(t, mutations, 1)
	assert.Contains(t, mutations[0].Description, "winning idea")
	assert.Contains(t, mutations[0].CodeSketch, "def f(): pass")
}

func TestScore(t *testing.T) {
	recent := []Prior{{Approach: "brute force", Succeeded: false}}

	tests := []struct {
		name string
		h    Hypothesis
		want float64
	}{
		{"base template", Hypothesis{Source: SourceTemplate, Approach: "novel"}, 1.0},
		{"failed approach halved", Hypothesis{Source: SourceTemplate, Approach: "brute force"}, 0.5},
		{"oracle boost", Hypothesis{Source: SourceOracle, Approach: "novel"}, 1.2},
		{"metrics boost", Hypothesis{Source: SourceTemplate, Approach: "novel", Metrics: []string{"a", "b", "c"}}, 1.1},
		{"compounded", Hypothesis{Source: SourceOracle, Approach: "brute force", Metrics: []string{"a", "b", "c"}}, 0.5 * 1.2 * 1.1},
	}

	e := newTestEngine(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := []Hypothesis{tt.h}
			e.score(candidates, recent)
			assert.InDelta(t, tt.want, candidates[0].Score, 1e-9)
		})
	}
}

func TestMutate_UsesArchetype(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := Prior{Description: "fast join", Approach: "hashing", Metrics: []string{"latency"}}

	h := mutate(base, rng, time.Now())
	assert.Equal(t, SourceMutation, h.Source)
	assert.Contains(t, h.Description, "fast join")
	assert.Contains(t, h.Approach, "hashing")
	assert.Equal(t, []string{"latency"}, h.Metrics)
	assert.Equal(t, "# Mutation of previous successful approach", h.CodeSketch)
}

func TestFillTemplate_ReplacesAllKnownPlaceholders(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	filled := fillTemplate("What if we modify {algorithm} by {modification} to improve {metric}?", rng)
	assert.NotContains(t, filled, "{")
}
