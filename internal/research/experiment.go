// Package research drives the autonomous loop: generate hypotheses, build
// and run experiment code, analyze the outcome, fold what was learned back
// into the knowledge store, and persist everything so a later run can
// resume.
package research

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rand/conjecture/internal/analysis"
	"github.com/rand/conjecture/internal/hypothesis"
	"github.com/rand/conjecture/internal/sandbox"
)

// Experiment is the durable unit of record: one hypothesis, its execution,
// and its analysis. Never mutated after persistence.
type Experiment struct {
	ID         string                `json:"id"`
	Iteration  int                   `json:"iteration"`
	Timestamp  time.Time             `json:"timestamp"`
	Hypothesis hypothesis.Hypothesis `json:"hypothesis"`
	Result     sandbox.Result        `json:"result"`
	Analysis   analysis.Analysis     `json:"analysis"`
}

// ExperimentID derives the stable record id from the iteration and the
// experiment's index within it.
func ExperimentID(iteration, index int) string {
	return fmt.Sprintf("exp_%d_%d", iteration, index)
}

// Summary renders a one-line human-readable account of the experiment.
func (e Experiment) Summary() string {
	if !e.Result.Success {
		errText := e.Result.Error
		if errText == "" {
			errText = "Unknown error"
		}
		return fmt.Sprintf("Failed: %s", errText)
	}

	parts := []string{fmt.Sprintf("Successfully executed: %s", e.Hypothesis.Description)}
	if metrics := e.Result.Metrics(e.Hypothesis); len(metrics) > 0 {
		if data, err := json.Marshal(metrics); err == nil {
			parts = append(parts, fmt.Sprintf("Metrics: %s", data))
		}
	}
	if e.Result.Output != nil {
		parts = append(parts, fmt.Sprintf("Key findings: %s", clip(fmt.Sprintf("%v", e.Result.Output), 200)))
	}
	return strings.Join(parts, " | ")
}

// Prior converts the experiment into the hypothesis engine's view of it.
func (e Experiment) Prior() hypothesis.Prior {
	return hypothesis.Prior{
		Description: e.Hypothesis.Description,
		Approach:    e.Hypothesis.Approach,
		CodeSketch:  e.Hypothesis.CodeSketch,
		Metrics:     e.Hypothesis.Metrics,
		Succeeded:   e.Result.Success,
		Error:       e.Result.Error,
	}
}

// PriorRun converts the experiment into the analyzer's view of it.
func (e Experiment) PriorRun() analysis.PriorRun {
	return analysis.PriorRun{
		Success:       e.Result.Success,
		ExecutionTime: e.Result.Timing.TotalSeconds,
	}
}

// SaveExperiment writes the experiment record to its own JSON file in dir,
// atomically.
func SaveExperiment(dir string, e Experiment) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create experiments dir: %w", err)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal experiment: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, e.ID+".json"), data)
}

// RecentExperiments loads up to n experiment records from dir, newest first
// by file modification time. Unreadable records are skipped.
func RecentExperiments(dir string, n int) ([]Experiment, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read experiments dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	var experiments []Experiment
	for _, c := range candidates {
		data, err := os.ReadFile(c.path)
		if err != nil {
			continue
		}
		var e Experiment
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		experiments = append(experiments, e)
	}
	return experiments, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func clip(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
