// Package analysis scores sandboxed experiment results, compares them
// against the recent experiment window, extracts insights, and classifies
// failures.
package analysis

import "time"

// Comparison relates one result to the recent successful experiments.
type Comparison struct {
	BetterThan int `json:"better_than"`
	WorseThan  int `json:"worse_than"`
	SimilarTo  int `json:"similar_to"`
	// PerformanceRank is the 1-based position of this result's execution
	// time among all comparable times, fastest first. Zero when nothing is
	// comparable.
	PerformanceRank int  `json:"performance_rank"`
	IsImprovement   bool `json:"is_improvement"`
}

// Insights holds what the analyzer extracted from a successful result.
type Insights struct {
	KeyFindings             []string `json:"key_findings"`
	Patterns                []string `json:"patterns"`
	Anomalies               []string `json:"anomalies"`
	TheoreticalImplications []string `json:"theoretical_implications"`
	// OracleAnalysis carries free-text oracle output that did not parse as
	// structured insights.
	OracleAnalysis string `json:"oracle_analysis,omitempty"`
}

// FailureAnalysis classifies a failed result.
type FailureAnalysis struct {
	ErrorType   string   `json:"error_type"`
	LikelyCause string   `json:"likely_cause"`
	Suggestions []string `json:"suggestions"`
}

// Analysis is the full assessment of one experiment. FailureAnalysis is set
// exactly when Success is false.
type Analysis struct {
	Timestamp       time.Time        `json:"timestamp"`
	Success         bool             `json:"success"`
	Score           float64          `json:"score"`
	Comparison      Comparison       `json:"comparison"`
	Insights        Insights         `json:"insights"`
	Recommendations []string         `json:"recommendations"`
	FailureAnalysis *FailureAnalysis `json:"failure_analysis,omitempty"`
}

// PriorRun is the analyzer's view of a recently completed experiment.
type PriorRun struct {
	Success       bool
	ExecutionTime float64
}

// Policy collects the scoring constants. They are heuristics with no deeper
// derivation, kept configurable rather than hard-coded.
type Policy struct {
	// MinImprovementThreshold is the relative time delta below which two
	// results count as similar.
	MinImprovementThreshold float64

	// FastTimeSeconds earns the speed bonus (exclusive); SlowTimeSeconds
	// draws the penalty (exclusive).
	FastTimeSeconds float64
	SlowTimeSeconds float64

	// LowMemoryMB earns the memory bonus; HighMemoryMB draws the penalty.
	LowMemoryMB  float64
	HighMemoryMB float64

	// OutcomeKeywords reward a result whose output echoes the hypothesis's
	// expected outcome.
	OutcomeKeywords []string

	// ReservedOutputKeys are the unremarkable output keys; anything else
	// counts as novel.
	ReservedOutputKeys []string

	// SlowRecommendationSeconds and HighMemoryRecommendationMB trigger the
	// corresponding recommendations.
	SlowRecommendationSeconds  float64
	HighMemoryRecommendationMB float64
}

// DefaultPolicy returns the standard scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		MinImprovementThreshold:    0.05,
		FastTimeSeconds:            1.0,
		SlowTimeSeconds:            10.0,
		LowMemoryMB:                100,
		HighMemoryMB:               500,
		OutcomeKeywords:            []string{"improve", "better", "faster", "efficient", "pattern", "found"},
		ReservedOutputKeys:         []string{"result", "time", "data"},
		SlowRecommendationSeconds:  5.0,
		HighMemoryRecommendationMB: 200,
	}
}
