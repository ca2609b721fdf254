package research

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rand/conjecture/internal/analysis"
	"github.com/rand/conjecture/internal/config"
	"github.com/rand/conjecture/internal/hypothesis"
	"github.com/rand/conjecture/internal/sandbox"
)

func TestState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current_state.json")

	state, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, State{}, state)

	state = State{
		Iteration:         3,
		TotalExperiments:  9,
		ResearchObjective: "optimize prime sieves",
		BestResults:       []BestResult{{ID: "exp_1_0", Score: 2.5, Description: "sieve tweak"}},
	}
	require.NoError(t, state.Save(path))

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestState_UpdateBest(t *testing.T) {
	var state State

	scores := []float64{0.5, 3.2, 1.0, 3.2}
	var experiments []Experiment
	for i, score := range scores {
		experiments = append(experiments, Experiment{
			ID:         ExperimentID(1, i),
			Hypothesis: hypothesis.Hypothesis{Description: "idea"},
			Analysis:   analysis.Analysis{Score: score},
		})
	}
	state.UpdateBest(experiments)

	require.Len(t, state.BestResults, 4)
	assert.Equal(t, []float64{3.2, 3.2, 1.0, 0.5}, []float64{
		state.BestResults[0].Score,
		state.BestResults[1].Score,
		state.BestResults[2].Score,
		state.BestResults[3].Score,
	})
	// Equal scores keep insertion order.
	assert.Equal(t, "exp_1_1", state.BestResults[0].ID)
	assert.Equal(t, "exp_1_3", state.BestResults[1].ID)
}

func TestState_UpdateBest_CapsAtTwenty(t *testing.T) {
	var state State

	var experiments []Experiment
	for i := 0; i < 30; i++ {
		experiments = append(experiments, Experiment{
			ID:       ExperimentID(0, i),
			Analysis: analysis.Analysis{Score: float64(i) + 0.5},
		})
	}
	state.UpdateBest(experiments)

	require.Len(t, state.BestResults, 20)
	assert.InDelta(t, 29.5, state.BestResults[0].Score, 1e-9)
	assert.InDelta(t, 10.5, state.BestResults[19].Score, 1e-9)
}

func TestState_UpdateBest_SkipsZeroScores(t *testing.T) {
	var state State
	state.UpdateBest([]Experiment{{ID: "exp_0_0", Analysis: analysis.Analysis{Score: 0}}})
	assert.Empty(t, state.BestResults)
}

func TestExperiments_SaveAndRecent(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := Experiment{
			ID:        ExperimentID(0, i),
			Iteration: 0,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, SaveExperiment(dir, e))
		// Spread modification times so recency ordering is observable.
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(dir, e.ID+".json"), mtime, mtime))
	}

	got, err := RecentExperiments(dir, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exp_0_2", got[0].ID)
	assert.Equal(t, "exp_0_1", got[1].ID)
}

func TestRecentExperiments_MissingDir(t *testing.T) {
	got, err := RecentExperiments(filepath.Join(t.TempDir(), "nope"), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExperimentSummary(t *testing.T) {
	success := Experiment{
		Hypothesis: hypothesis.Hypothesis{Description: "memoized fib"},
		Result: sandbox.Result{
			Success: true,
			Output:  map[string]any{"result": 42.0},
			Timing:  sandbox.Timing{TotalSeconds: 0.1},
		},
	}
	s := success.Summary()
	assert.Contains(t, s, "Successfully executed: memoized fib")
	assert.Contains(t, s, "Key findings:")

	failed := Experiment{Result: sandbox.Result{Error: "execution timeout (30s)"}}
	assert.Equal(t, "Failed: execution timeout (30s)", failed.Summary())
}

// Orchestrator stubs.

type stubGenerator struct{ calls int }

func (g *stubGenerator) Generate(_ context.Context, _ string, _ []hypothesis.Prior) []hypothesis.Hypothesis {
	g.calls++
	return []hypothesis.Hypothesis{
		{Source: hypothesis.SourceOracle, Description: "first idea", Approach: "approach a"},
		{Source: hypothesis.SourceTemplate, Description: "second idea", Approach: "approach b"},
		{Source: hypothesis.SourceTemplate, Description: "surplus idea", Approach: "approach c"},
	}
}

type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, _ hypothesis.Hypothesis) string { return "result = 1" }

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, _ string) sandbox.Result {
	return sandbox.Result{
		Success: true,
		Output:  map[string]any{"count": 5.0},
		Timing:  sandbox.Timing{TotalSeconds: 0.2},
	}
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, result sandbox.Result, _ hypothesis.Hypothesis, _ []analysis.PriorRun) analysis.Analysis {
	return analysis.Analysis{
		Success: result.Success,
		Score:   2.5,
		Insights: analysis.Insights{
			KeyFindings: []string{"count: 5"},
		},
	}
}

type recordingKnowledge struct {
	insights   []string
	patterns   []string
	algorithms []string
	failures   []string
}

func (k *recordingKnowledge) AddInsight(content string) error {
	k.insights = append(k.insights, content)
	return nil
}

func (k *recordingKnowledge) AddPattern(_, pattern string) error {
	k.patterns = append(k.patterns, pattern)
	return nil
}

func (k *recordingKnowledge) AddAlgorithm(name, _, _ string, _ map[string]float64) error {
	k.algorithms = append(k.algorithms, name)
	return nil
}

func (k *recordingKnowledge) AddFailure(errorType, _, _ string) error {
	k.failures = append(k.failures, errorType)
	return nil
}

func newTestOrchestrator(t *testing.T, knowledge Knowledge) (*Orchestrator, config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.MaxIterations = 2
	cfg.ExperimentsPerIteration = 2
	cfg.IterationDelay = 0
	require.NoError(t, os.MkdirAll(cfg.WorkspaceDir, 0o755))

	o, err := New(Options{
		Config:    cfg,
		Generator: &stubGenerator{},
		Builder:   stubBuilder{},
		Runner:    stubRunner{},
		Analyzer:  stubAnalyzer{},
		Knowledge: knowledge,
	})
	require.NoError(t, err)
	return o, cfg
}

func TestOrchestrator_Run(t *testing.T) {
	k := &recordingKnowledge{}
	o, cfg := newTestOrchestrator(t, k)

	require.NoError(t, o.Run(context.Background(), "optimize things"))

	state := o.State()
	assert.Equal(t, 2, state.Iteration)
	assert.Equal(t, 4, state.TotalExperiments)
	assert.Equal(t, "optimize things", state.ResearchObjective)
	assert.NotEmpty(t, state.RunID)
	require.NotEmpty(t, state.BestResults)
	assert.InDelta(t, 2.5, state.BestResults[0].Score, 1e-9)

	// Only the per-iteration budget of candidates actually ran.
	for _, id := range []string{"exp_0_0", "exp_0_1", "exp_1_0", "exp_1_1"} {
		assert.FileExists(t, filepath.Join(cfg.ExperimentsDir, id+".json"))
	}
	assert.NoFileExists(t, filepath.Join(cfg.ExperimentsDir, "exp_0_2.json"))

	// Knowledge ingestion: findings, success patterns, and high scorers.
	assert.Contains(t, k.insights, "count: 5")
	assert.Contains(t, k.patterns, "approach a")
	assert.Contains(t, k.algorithms, "exp_0_0")
	assert.Empty(t, k.failures)

	// State and report are persisted for resumption.
	assert.FileExists(t, filepath.Join(cfg.WorkspaceDir, "current_state.json"))
	assert.FileExists(t, filepath.Join(cfg.WorkspaceDir, "research_report.txt"))

	// A resumed orchestrator picks the objective up from disk.
	resumed, err := New(Options{
		Config:    cfg,
		Generator: &stubGenerator{},
		Builder:   stubBuilder{},
		Runner:    stubRunner{},
		Analyzer:  stubAnalyzer{},
		Knowledge: k,
	})
	require.NoError(t, err)
	assert.Equal(t, "optimize things", resumed.State().ResearchObjective)
	assert.Equal(t, 2, resumed.State().Iteration)
	assert.Equal(t, state.RunID, resumed.State().RunID)
}

func TestOrchestrator_PauseIsNotAnError(t *testing.T) {
	o, cfg := newTestOrchestrator(t, &recordingKnowledge{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, o.Run(ctx, "anything"))
	assert.Equal(t, 0, o.State().Iteration)
	assert.FileExists(t, filepath.Join(cfg.WorkspaceDir, "research_report.txt"))
}

// interruptingRunner raises the interrupt while the first experiment is in
// flight, the way Ctrl-C lands mid-subprocess.
type interruptingRunner struct {
	cancel context.CancelFunc
}

func (r interruptingRunner) Run(_ context.Context, _ string) sandbox.Result {
	r.cancel()
	return sandbox.Result{
		Success: true,
		Output:  map[string]any{"count": 5.0},
		Timing:  sandbox.Timing{TotalSeconds: 0.2},
	}
}

func TestOrchestrator_InterruptMidIterationAbandonsRemaining(t *testing.T) {
	k := &recordingKnowledge{}
	o, cfg := newTestOrchestrator(t, k)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.runner = interruptingRunner{cancel: cancel}

	require.NoError(t, o.Run(ctx, "anything"))

	// The in-flight experiment finishes and is recorded; the remaining
	// candidates never run and nothing reaches the knowledge store as a
	// failure.
	assert.FileExists(t, filepath.Join(cfg.ExperimentsDir, "exp_0_0.json"))
	assert.NoFileExists(t, filepath.Join(cfg.ExperimentsDir, "exp_0_1.json"))
	assert.NoFileExists(t, filepath.Join(cfg.ExperimentsDir, "exp_0_2.json"))
	assert.Empty(t, k.failures)

	// The abandoned iteration is not committed, so it reruns on resume.
	assert.Equal(t, 0, o.State().Iteration)
	assert.Equal(t, 0, o.State().TotalExperiments)
	saved, err := LoadState(filepath.Join(cfg.WorkspaceDir, "current_state.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, saved.Iteration)
}

func TestOrchestrator_RequiresObjective(t *testing.T) {
	o, _ := newTestOrchestrator(t, &recordingKnowledge{})
	assert.Error(t, o.Run(context.Background(), ""))
}

func TestOrchestrator_RecordsFailures(t *testing.T) {
	k := &recordingKnowledge{}
	o, _ := newTestOrchestrator(t, k)
	o.runner = failingRunner{}
	o.analyzer = failureAnalyzer{}

	require.NoError(t, o.Run(context.Background(), "anything"))
	assert.Contains(t, k.failures, "timeout")
	assert.Empty(t, k.patterns)
	assert.Empty(t, k.algorithms)
}

type failingRunner struct{}

func (failingRunner) Run(_ context.Context, _ string) sandbox.Result {
	return sandbox.Result{Success: false, Error: "execution timeout (30s)"}
}

type failureAnalyzer struct{}

func (failureAnalyzer) Analyze(_ context.Context, result sandbox.Result, _ hypothesis.Hypothesis, _ []analysis.PriorRun) analysis.Analysis {
	return analysis.Analysis{
		Success: false,
		FailureAnalysis: &analysis.FailureAnalysis{
			ErrorType:   "timeout",
			Suggestions: []string{"Reduce problem size"},
		},
	}
}

func TestSummarizeIteration(t *testing.T) {
	assert.Equal(t, "No experiments completed in this iteration.", SummarizeIteration(nil))

	results := []Experiment{
		{
			Hypothesis: hypothesis.Hypothesis{Description: "fast idea"},
			Result:     sandbox.Result{Success: true},
			Analysis:   analysis.Analysis{Score: 2.0, Insights: analysis.Insights{KeyFindings: []string{"count: 5"}}},
		},
		{
			Hypothesis: hypothesis.Hypothesis{Description: "broken idea"},
			Result:     sandbox.Result{Success: false},
		},
	}
	summary := SummarizeIteration(results)
	assert.Contains(t, summary, "Completed 2 experiments (1 successful)")
	assert.Contains(t, summary, "Success rate: 50.0%")
	assert.Contains(t, summary, "Best result: fast idea (score: 2.00)")
	assert.Contains(t, summary, "Key insights: count: 5")
}

func TestRenderReport(t *testing.T) {
	report := RenderReport(State{
		ResearchObjective: "optimize sorting",
		Iteration:         5,
		TotalExperiments:  15,
		BestResults: []BestResult{
			{ID: "exp_2_1", Score: 3.25, Description: "tuned quicksort"},
		},
	})
	assert.Contains(t, report, "Objective: optimize sorting")
	assert.Contains(t, report, "Total Iterations: 5")
	assert.Contains(t, report, "Total Experiments: 15")
	assert.Contains(t, report, "1. tuned quicksort (Score: 3.25)")

	empty := RenderReport(State{})
	assert.Contains(t, empty, "No scored experiments yet.")
}
