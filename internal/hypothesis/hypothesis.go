// Package hypothesis generates candidate experiments for a research
// objective. Candidates come from three generators: the oracle, canned
// templates keyed by objective classification, and mutation of a recent
// success. Candidates are scored and ranked before the orchestrator picks
// which to run.
package hypothesis

import "time"

// Source identifies which generator produced a hypothesis.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourceTemplate Source = "template"
	SourceMutation Source = "mutation"
)

// Hypothesis is a testable idea plus enough structure to turn it into code.
// Immutable once generated except for Score, assigned once per round.
type Hypothesis struct {
	Timestamp       time.Time `json:"timestamp"`
	Source          Source    `json:"source"`
	Description     string    `json:"description"`
	Approach        string    `json:"approach"`
	CodeSketch      string    `json:"code_sketch"`
	ExpectedOutcome string    `json:"expected_outcome"`
	Metrics         []string  `json:"metrics"`
	Score           float64   `json:"score"`
}

// Prior is the engine's view of a recently run experiment: just enough to
// steer generation away from failures and toward mutating successes.
type Prior struct {
	Description string
	Approach    string
	CodeSketch  string
	Metrics     []string
	Succeeded   bool
	Error       string
}
