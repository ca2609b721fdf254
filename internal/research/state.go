package research

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// BestResult is one entry on the leaderboard kept in the research state.
type BestResult struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// State is the process-wide research state, persisted after every iteration
// and reloaded on startup to resume a paused run.
type State struct {
	RunID             string       `json:"run_id"`
	Iteration         int          `json:"iteration"`
	TotalExperiments  int          `json:"total_experiments"`
	BestResults       []BestResult `json:"best_results"`
	ResearchObjective string       `json:"research_objective"`
}

// bestResultsCap bounds the leaderboard.
const bestResultsCap = 20

// LoadState reads a persisted state, returning a zero state when none
// exists yet.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse state: %w", err)
	}
	return state, nil
}

// Save writes the state atomically.
func (s State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return writeFileAtomic(path, data)
}

// UpdateBest folds scored experiments into the leaderboard: positive scores
// only, sorted descending, ties keeping insertion order, capped at twenty.
func (s *State) UpdateBest(experiments []Experiment) {
	for _, e := range experiments {
		if e.Analysis.Score > 0 {
			s.BestResults = append(s.BestResults, BestResult{
				ID:          e.ID,
				Score:       e.Analysis.Score,
				Description: e.Hypothesis.Description,
			})
		}
	}

	sort.SliceStable(s.BestResults, func(i, j int) bool {
		return s.BestResults[i].Score > s.BestResults[j].Score
	})
	if len(s.BestResults) > bestResultsCap {
		s.BestResults = s.BestResults[:bestResultsCap]
	}
}
