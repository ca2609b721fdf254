package hypothesis

import (
	"strings"
	"time"

	"github.com/rand/conjecture/internal/oracle"
)

// parseOracleResponse splits a structured oracle reply into hypotheses.
// Fragments are separated by "---"; a fragment without a HYPOTHESIS line is
// dropped rather than failing the whole response.
func parseOracleResponse(response string, now time.Time) []Hypothesis {
	var hypotheses []Hypothesis

	for _, fragment := range strings.Split(response, "---") {
		if !strings.Contains(fragment, "HYPOTHESIS:") {
			continue
		}

		h := Hypothesis{Timestamp: now, Source: SourceOracle}
		for _, line := range strings.Split(strings.TrimSpace(fragment), "\n") {
			switch {
			case strings.HasPrefix(line, "HYPOTHESIS:"):
				h.Description = strings.TrimSpace(strings.TrimPrefix(line, "HYPOTHESIS:"))
			case strings.HasPrefix(line, "APPROACH:"):
				h.Approach = strings.TrimSpace(strings.TrimPrefix(line, "APPROACH:"))
			case strings.HasPrefix(line, "EXPECTED_OUTCOME:"):
				h.ExpectedOutcome = strings.TrimSpace(strings.TrimPrefix(line, "EXPECTED_OUTCOME:"))
			case strings.HasPrefix(line, "METRICS:"):
				h.Metrics = splitMetrics(strings.TrimPrefix(line, "METRICS:"))
			}
		}

		if blocks := oracle.ExtractCodeBlocks(fragment); len(blocks) > 0 {
			h.CodeSketch = blocks[0]
		}

		if h.Description != "" {
			hypotheses = append(hypotheses, h)
		}
	}

	return hypotheses
}

func splitMetrics(s string) []string {
	var metrics []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			metrics = append(metrics, m)
		}
	}
	return metrics
}
