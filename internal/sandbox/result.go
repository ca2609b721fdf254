// Package sandbox executes generated Python experiments in a restricted
// subprocess. The harness applies OS resource limits inside the child and
// reports results as a final JSON line on stdout; the parent enforces a
// wall-clock timeout and verifies the child's peak memory after exit.
package sandbox

import "github.com/rand/conjecture/internal/hypothesis"

// ResourceUsage reports what the subprocess consumed.
type ResourceUsage struct {
	// MemoryMB is the child's peak resident set size.
	MemoryMB float64 `json:"memory_mb"`
}

// Timing reports how long the experiment ran.
type Timing struct {
	// TotalSeconds is the harness-measured execution time. Falls back to
	// the parent's wall-clock measurement when the harness reported none.
	TotalSeconds float64 `json:"total_seconds"`
}

// Result is the outcome of one sandboxed execution.
type Result struct {
	Success       bool          `json:"success"`
	Output        any           `json:"output"`
	Error         string        `json:"error,omitempty"`
	Stdout        string        `json:"stdout"`
	Stderr        string        `json:"stderr"`
	ResourceUsage ResourceUsage `json:"resource_usage"`
	Timing        Timing        `json:"timing"`
}

// Metrics projects a result into the measurements the hypothesis asked for,
// always including execution time and memory. Requested metric names are
// copied from the structured output when present.
func (r Result) Metrics(h hypothesis.Hypothesis) map[string]any {
	if !r.Success {
		return map[string]any{}
	}

	metrics := map[string]any{
		"execution_time": r.Timing.TotalSeconds,
		"memory_mb":      r.ResourceUsage.MemoryMB,
	}
	if output, ok := r.Output.(map[string]any); ok {
		for _, name := range h.Metrics {
			if v, ok := output[name]; ok {
				metrics[name] = v
			}
		}
	}
	return metrics
}

// harnessReport is the JSON object the harness prints as its last stdout
// line.
type harnessReport struct {
	Output any            `json:"output"`
	Error  *string        `json:"error"`
	Timing map[string]any `json:"timing"`
}
