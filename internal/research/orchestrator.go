package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rand/conjecture/internal/analysis"
	"github.com/rand/conjecture/internal/archive"
	"github.com/rand/conjecture/internal/config"
	"github.com/rand/conjecture/internal/hypothesis"
	"github.com/rand/conjecture/internal/sandbox"
)

// Generator produces ranked hypothesis candidates.
type Generator interface {
	Generate(ctx context.Context, objective string, recent []hypothesis.Prior) []hypothesis.Hypothesis
}

// Builder turns a hypothesis into runnable code.
type Builder interface {
	Build(ctx context.Context, h hypothesis.Hypothesis) string
}

// Runner executes experiment code.
type Runner interface {
	Run(ctx context.Context, code string) sandbox.Result
}

// Analyzer assesses execution results.
type Analyzer interface {
	Analyze(ctx context.Context, result sandbox.Result, h hypothesis.Hypothesis, recent []analysis.PriorRun) analysis.Analysis
}

// Knowledge is the slice of the knowledge store the loop feeds.
type Knowledge interface {
	AddInsight(content string) error
	AddPattern(patternType, pattern string) error
	AddAlgorithm(name, description, code string, performance map[string]float64) error
	AddFailure(errorType, description, solution string) error
}

// Successful experiments scoring at least this are registered as reusable
// algorithms.
const algorithmScoreThreshold = 2.0

// Pattern type under which successful approaches are recorded.
const patternSuccessfulApproach = "successful_approach"

// Options configures an Orchestrator.
type Options struct {
	Config    config.Config
	Generator Generator
	Builder   Builder
	Runner    Runner
	Analyzer  Analyzer
	Knowledge Knowledge

	// Archive optionally mirrors experiment records into SQLite.
	Archive *archive.Store

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	Logger *slog.Logger
}

// Orchestrator runs the research loop.
type Orchestrator struct {
	config    config.Config
	generator Generator
	builder   Builder
	runner    Runner
	analyzer  Analyzer
	knowledge Knowledge
	archive   *archive.Store
	clock     func() time.Time
	logger    *slog.Logger

	state State
}

// New creates an orchestrator, loading any previously persisted state.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Generator == nil:
		return nil, errors.New("research: generator is required")
	case opts.Builder == nil:
		return nil, errors.New("research: builder is required")
	case opts.Runner == nil:
		return nil, errors.New("research: runner is required")
	case opts.Analyzer == nil:
		return nil, errors.New("research: analyzer is required")
	case opts.Knowledge == nil:
		return nil, errors.New("research: knowledge store is required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	state, err := LoadState(statePath(opts.Config))
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:    opts.Config,
		generator: opts.Generator,
		builder:   opts.Builder,
		runner:    opts.Runner,
		analyzer:  opts.Analyzer,
		knowledge: opts.Knowledge,
		archive:   opts.Archive,
		clock:     opts.Clock,
		logger:    opts.Logger,
		state:     state,
	}, nil
}

func statePath(cfg config.Config) string {
	return filepath.Join(cfg.WorkspaceDir, "current_state.json")
}

// State returns a copy of the current research state.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes iterations until the configured maximum or until the context
// is canceled. Cancellation is a pause, not a failure: it is observed only
// between iterations, state is saved, and nil is returned. A final report is
// written either way.
func (o *Orchestrator) Run(ctx context.Context, objective string) error {
	if objective == "" {
		objective = o.state.ResearchObjective
	}
	if objective == "" {
		return errors.New("research: no objective given and none persisted")
	}
	if o.state.ResearchObjective != objective || o.state.RunID == "" {
		// A new objective starts a fresh line of inquiry over the same
		// accumulated knowledge.
		o.state.ResearchObjective = objective
		o.state.RunID = uuid.NewString()
	}
	if err := o.state.Save(statePath(o.config)); err != nil {
		return err
	}

	o.logger.Info("research starting",
		"run_id", o.state.RunID,
		"objective", objective,
		"iteration", o.state.Iteration,
		"max_iterations", o.config.MaxIterations)

	defer o.finish()

	for o.state.Iteration < o.config.MaxIterations {
		select {
		case <-ctx.Done():
			o.logger.Info("research paused", "iteration", o.state.Iteration)
			return nil
		default:
		}

		if err := o.runIteration(ctx); err != nil {
			return err
		}

		if o.config.IterationDelay > 0 {
			select {
			case <-ctx.Done():
				o.logger.Info("research paused", "iteration", o.state.Iteration)
				return nil
			case <-time.After(o.config.IterationDelay):
			}
		}
	}

	o.logger.Info("research complete", "iterations", o.state.Iteration)
	return nil
}

func (o *Orchestrator) finish() {
	if err := o.state.Save(statePath(o.config)); err != nil {
		o.logger.Error("saving state failed", "error", err)
	}
	reportPath := filepath.Join(o.config.WorkspaceDir, "research_report.txt")
	if err := WriteReport(reportPath, o.state); err != nil {
		o.logger.Error("writing report failed", "error", err)
	}
}

// runIteration generates hypotheses, runs up to ExperimentsPerIteration of
// them sequentially, and folds the outcomes into state and knowledge. No
// experiment failure aborts the iteration.
func (o *Orchestrator) runIteration(ctx context.Context) error {
	iteration := o.state.Iteration
	o.logger.Info("iteration starting", "iteration", iteration)

	recent, err := RecentExperiments(o.config.ExperimentsDir, 10)
	if err != nil {
		o.logger.Warn("loading recent experiments failed", "error", err)
	}

	priors := make([]hypothesis.Prior, 0, len(recent))
	priorRuns := make([]analysis.PriorRun, 0, len(recent))
	for _, e := range recent {
		priors = append(priors, e.Prior())
		priorRuns = append(priorRuns, e.PriorRun())
	}

	candidates := o.generator.Generate(ctx, o.state.ResearchObjective, priors)
	if len(candidates) > o.config.ExperimentsPerIteration {
		candidates = candidates[:o.config.ExperimentsPerIteration]
	}

	var results []Experiment
	for i, h := range candidates {
		// An interrupt mid-iteration abandons the remaining candidates
		// without committing state; the iteration reruns on resume.
		if ctx.Err() != nil {
			o.logger.Info("iteration abandoned",
				"iteration", iteration,
				"completed", len(results))
			return nil
		}

		o.logger.Info("experiment starting",
			"id", ExperimentID(iteration, i),
			"source", h.Source,
			"hypothesis", h.Description)

		// The in-flight experiment is bounded by the sandbox's own
		// timeout, not by the interrupt signal.
		execCtx := context.WithoutCancel(ctx)
		code := o.builder.Build(execCtx, h)
		result := o.runner.Run(execCtx, code)
		a := o.analyzer.Analyze(execCtx, result, h, priorRuns)

		experiment := Experiment{
			ID:         ExperimentID(iteration, i),
			Iteration:  iteration,
			Timestamp:  o.clock(),
			Hypothesis: h,
			Result:     result,
			Analysis:   a,
		}

		if err := SaveExperiment(o.config.ExperimentsDir, experiment); err != nil {
			o.logger.Error("saving experiment failed", "id", experiment.ID, "error", err)
		}
		o.mirror(execCtx, experiment)
		o.ingest(experiment, code)

		results = append(results, experiment)
		o.logger.Info("experiment finished", "id", experiment.ID, "summary", experiment.Summary())
	}

	o.logger.Info("iteration summary", "iteration", iteration, "summary", SummarizeIteration(results))

	o.state.Iteration++
	o.state.TotalExperiments += len(results)
	o.state.UpdateBest(results)
	return o.state.Save(statePath(o.config))
}

// mirror copies the experiment into the SQLite archive when one is
// configured.
func (o *Orchestrator) mirror(ctx context.Context, e Experiment) {
	if o.archive == nil {
		return
	}
	err := o.archive.Add(ctx, archive.Entry{
		ID:            e.ID,
		Iteration:     e.Iteration,
		Source:        string(e.Hypothesis.Source),
		Description:   e.Hypothesis.Description,
		Approach:      e.Hypothesis.Approach,
		Success:       e.Result.Success,
		Score:         e.Analysis.Score,
		Error:         e.Result.Error,
		ExecutionTime: e.Result.Timing.TotalSeconds,
		MemoryMB:      e.Result.ResourceUsage.MemoryMB,
		CreatedAt:     e.Timestamp,
	})
	if err != nil {
		o.logger.Warn("archiving experiment failed", "id", e.ID, "error", err)
	}
}

// ingest feeds the experiment's outcome into the knowledge store.
func (o *Orchestrator) ingest(e Experiment, code string) {
	for _, finding := range e.Analysis.Insights.KeyFindings {
		if err := o.knowledge.AddInsight(finding); err != nil {
			o.logger.Warn("storing insight failed", "error", err)
		}
	}

	if e.Result.Success {
		if err := o.knowledge.AddPattern(patternSuccessfulApproach, e.Hypothesis.Approach); err != nil {
			o.logger.Warn("storing pattern failed", "error", err)
		}
		if e.Analysis.Score >= algorithmScoreThreshold {
			performance := map[string]float64{
				"score":          e.Analysis.Score,
				"execution_time": e.Result.Timing.TotalSeconds,
				"memory_mb":      e.Result.ResourceUsage.MemoryMB,
			}
			if err := o.knowledge.AddAlgorithm(e.ID, e.Hypothesis.Description, code, performance); err != nil {
				o.logger.Warn("storing algorithm failed", "error", err)
			}
		}
		return
	}

	if fa := e.Analysis.FailureAnalysis; fa != nil {
		solution := ""
		if len(fa.Suggestions) > 0 {
			solution = fa.Suggestions[0]
		}
		if err := o.knowledge.AddFailure(fa.ErrorType, e.Result.Error, solution); err != nil {
			o.logger.Warn("storing failure failed", "error", err)
		}
	}
}

// SummarizeIteration renders a one-line account of an iteration's results.
func SummarizeIteration(results []Experiment) string {
	if len(results) == 0 {
		return "No experiments completed in this iteration."
	}

	successful := 0
	best := -1.0
	var bestExp Experiment
	var findings []string
	for _, e := range results {
		if e.Result.Success {
			successful++
		}
		if e.Analysis.Score > best {
			best = e.Analysis.Score
			bestExp = e
		}
		findings = append(findings, e.Analysis.Insights.KeyFindings...)
	}

	parts := []string{
		fmt.Sprintf("Completed %d experiments (%d successful)", len(results), successful),
		fmt.Sprintf("Success rate: %.1f%%", float64(successful)/float64(len(results))*100),
		fmt.Sprintf("Best result: %s (score: %.2f)", clip(bestExp.Hypothesis.Description, 50), best),
	}
	if len(findings) > 0 {
		if len(findings) > 3 {
			findings = findings[:3]
		}
		parts = append(parts, fmt.Sprintf("Key insights: %s", strings.Join(findings, "; ")))
	}
	return strings.Join(parts, " | ")
}
