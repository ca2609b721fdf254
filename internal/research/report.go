package research

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// RenderReport formats the final human-readable research summary.
func RenderReport(state State) string {
	var b strings.Builder

	b.WriteString("RESEARCH REPORT\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Objective: %s\n", state.ResearchObjective)
	fmt.Fprintf(&b, "Total Iterations: %s\n", humanize.Comma(int64(state.Iteration)))
	fmt.Fprintf(&b, "Total Experiments: %s\n\n", humanize.Comma(int64(state.TotalExperiments)))

	b.WriteString("TOP DISCOVERIES:\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	top := state.BestResults
	if len(top) > 10 {
		top = top[:10]
	}
	if len(top) == 0 {
		b.WriteString("No scored experiments yet.\n")
	}
	for i, result := range top {
		fmt.Fprintf(&b, "%d. %s (Score: %.2f)\n", i+1, result.Description, result.Score)
	}

	return b.String()
}

// WriteReport writes the rendered report to path atomically.
func WriteReport(path string, state State) error {
	return writeFileAtomic(path, []byte(RenderReport(state)))
}
