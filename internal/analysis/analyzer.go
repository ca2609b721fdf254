package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rand/conjecture/internal/config"
	"github.com/rand/conjecture/internal/hypothesis"
	"github.com/rand/conjecture/internal/oracle"
	"github.com/rand/conjecture/internal/sandbox"
)

// Config configures an Analyzer.
type Config struct {
	// Policy overrides the default scoring constants.
	Policy *Policy

	// Depth controls whether the oracle is consulted for deeper insight
	// extraction. Defaults to basic (no oracle calls).
	Depth config.AnalysisDepth

	// Oracle is consulted at moderate and deep analysis depth. Nil
	// disables oracle insights regardless of depth.
	Oracle oracle.Client

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	Logger *slog.Logger
}

// Analyzer assesses experiment results.
type Analyzer struct {
	policy Policy
	depth  config.AnalysisDepth
	oracle oracle.Client
	clock  func() time.Time
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	policy := DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Depth == "" {
		cfg.Depth = config.DepthBasic
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		policy: policy,
		depth:  cfg.Depth,
		oracle: cfg.Oracle,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
}

// Analyze assesses one result against its hypothesis and the recent
// experiment window.
func (a *Analyzer) Analyze(ctx context.Context, result sandbox.Result, h hypothesis.Hypothesis, recent []PriorRun) Analysis {
	analysis := Analysis{
		Timestamp: a.clock(),
		Success:   result.Success,
	}

	if !result.Success {
		analysis.FailureAnalysis = classifyFailure(result.Error)
		return analysis
	}

	analysis.Score = a.score(result, h)
	analysis.Comparison = a.compare(result, recent)
	analysis.Insights = a.extractInsights(ctx, result, h, analysis.Comparison)
	analysis.Recommendations = a.recommend(result, h, analysis.Insights)
	return analysis
}

// score rates a successful result: base 1.0 plus speed, memory, expected-
// outcome and novelty adjustments, floored at zero.
func (a *Analyzer) score(result sandbox.Result, h hypothesis.Hypothesis) float64 {
	score := 1.0

	execTime := result.Timing.TotalSeconds
	if execTime < a.policy.FastTimeSeconds {
		score += 0.5
	} else if execTime > a.policy.SlowTimeSeconds {
		score -= 0.5
	}

	memory := result.ResourceUsage.MemoryMB
	if memory < a.policy.LowMemoryMB {
		score += 0.3
	} else if memory > a.policy.HighMemoryMB {
		score -= 0.3
	}

	if a.outcomeMatched(result, h) {
		score += 1.0
	}
	if a.isNovel(result) {
		score += 0.5
	}

	if score < 0 {
		return 0
	}
	return score
}

// outcomeMatched reports whether the expected outcome and the stringified
// output share one of the policy keywords.
func (a *Analyzer) outcomeMatched(result sandbox.Result, h hypothesis.Hypothesis) bool {
	expected := strings.ToLower(h.ExpectedOutcome)
	output := strings.ToLower(fmt.Sprintf("%v", result.Output))

	for _, keyword := range a.policy.OutcomeKeywords {
		if strings.Contains(expected, keyword) && strings.Contains(output, keyword) {
			return true
		}
	}
	return false
}

// isNovel reports whether the output carries keys beyond the reserved set.
func (a *Analyzer) isNovel(result sandbox.Result) bool {
	output, ok := result.Output.(map[string]any)
	if !ok {
		return false
	}
	for key := range output {
		reserved := false
		for _, r := range a.policy.ReservedOutputKeys {
			if key == r {
				reserved = true
				break
			}
		}
		if !reserved {
			return true
		}
	}
	return false
}

// compare classifies the result's execution time against each successful
// recent run, then ranks it among all comparable times.
func (a *Analyzer) compare(result sandbox.Result, recent []PriorRun) Comparison {
	var comparison Comparison
	currentTime := result.Timing.TotalSeconds

	var times []float64
	for _, prior := range recent {
		if !prior.Success {
			continue
		}
		times = append(times, prior.ExecutionTime)

		switch {
		case currentTime < prior.ExecutionTime*(1-a.policy.MinImprovementThreshold):
			comparison.BetterThan++
		case currentTime > prior.ExecutionTime*(1+a.policy.MinImprovementThreshold):
			comparison.WorseThan++
		default:
			comparison.SimilarTo++
		}
	}

	if len(times) > 0 {
		times = append(times, currentTime)
		sort.Float64s(times)
		for i, t := range times {
			if t == currentTime {
				comparison.PerformanceRank = i + 1
				break
			}
		}
		comparison.IsImprovement = comparison.PerformanceRank <= len(times)/2
	}

	return comparison
}

func (a *Analyzer) extractInsights(ctx context.Context, result sandbox.Result, h hypothesis.Hypothesis, comparison Comparison) Insights {
	var insights Insights

	if output, ok := result.Output.(map[string]any); ok {
		keys := make([]string, 0, len(output))
		for key := range output {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if v, ok := asPositiveNumber(output[key]); ok {
				insights.KeyFindings = append(insights.KeyFindings, fmt.Sprintf("%s: %v", key, v))
			}
		}
	}

	if comparison.IsImprovement {
		insights.KeyFindings = append(insights.KeyFindings,
			fmt.Sprintf("Performance improvement: ranked %d among recent experiments", comparison.PerformanceRank))
	}

	if a.oracle != nil && (a.depth == config.DepthModerate || a.depth == config.DepthDeep) {
		a.addOracleInsights(ctx, result, h, &insights)
	}

	return insights
}

func asPositiveNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n > 0
	case int:
		return float64(n), n > 0
	default:
		return 0, false
	}
}

const insightPromptFormat = `Analyze this experimental result:

Hypothesis: %s
Expected outcome: %s

Result:
Success: %t
Output: %s
Metrics: %s

Extract:
1. Key findings (what worked or didn't work)
2. Patterns observed in the data
3. Theoretical implications
4. Suggestions for next experiments

Format as JSON.`

// addOracleInsights asks the oracle for deeper structured analysis. The
// reply is parsed leniently: a JSON object contributes to the named insight
// lists, anything else is kept as free text.
func (a *Analyzer) addOracleInsights(ctx context.Context, result sandbox.Result, h hypothesis.Hypothesis, insights *Insights) {
	outputJSON, err := json.MarshalIndent(result.Output, "", "  ")
	if err != nil {
		outputJSON = []byte(`"No output"`)
	}
	metricsJSON, err := json.MarshalIndent(result.Metrics(h), "", "  ")
	if err != nil {
		metricsJSON = []byte("{}")
	}

	prompt := fmt.Sprintf(insightPromptFormat,
		h.Description, h.ExpectedOutcome, result.Success,
		clip(string(outputJSON), 500), metricsJSON)

	response, err := a.oracle.Query(ctx, prompt, oracle.Options{Temperature: codegenTemperature})
	if err != nil {
		a.logger.Warn("oracle insight extraction failed", "error", err)
		return
	}

	parsed, ok := oracle.ExtractJSON(response)
	if !ok {
		insights.OracleAnalysis = clip(response, 500)
		return
	}
	insights.KeyFindings = append(insights.KeyFindings, stringList(parsed["key_findings"])...)
	insights.Patterns = append(insights.Patterns, stringList(parsed["patterns"])...)
	insights.TheoreticalImplications = append(insights.TheoreticalImplications, stringList(parsed["theoretical_implications"])...)
}

const codegenTemperature = 0.3

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func clip(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func (a *Analyzer) recommend(result sandbox.Result, h hypothesis.Hypothesis, insights Insights) []string {
	var recommendations []string

	if result.Timing.TotalSeconds > a.policy.SlowRecommendationSeconds {
		recommendations = append(recommendations, "Consider optimization techniques to reduce execution time")
	}
	if result.ResourceUsage.MemoryMB > a.policy.HighMemoryRecommendationMB {
		recommendations = append(recommendations, "Explore memory-efficient alternatives")
	}
	if len(insights.KeyFindings) > 0 {
		recommendations = append(recommendations, fmt.Sprintf("Build upon findings: %s", insights.KeyFindings[0]))
	}
	if strings.Contains(strings.ToLower(h.Approach), "optimization") {
		recommendations = append(recommendations, "Test with larger datasets to validate optimization")
	}

	return recommendations
}

// Failure classes in matching priority order.
var failureClasses = []struct {
	match    func(error string) bool
	analysis FailureAnalysis
}{
	{
		match: func(e string) bool { return strings.Contains(e, "timeout") },
		analysis: FailureAnalysis{
			ErrorType:   "timeout",
			LikelyCause: "Algorithm complexity too high",
			Suggestions: []string{"Reduce problem size", "Optimize algorithm", "Increase timeout limit"},
		},
	},
	{
		match: func(e string) bool { return strings.Contains(e, "memory") },
		analysis: FailureAnalysis{
			ErrorType:   "memory",
			LikelyCause: "Excessive memory usage",
			Suggestions: []string{"Use memory-efficient data structures", "Process data in chunks", "Reduce data size"},
		},
	},
	{
		match: func(e string) bool { return strings.Contains(e, "syntax") || strings.Contains(e, "name") },
		analysis: FailureAnalysis{
			ErrorType:   "code_error",
			LikelyCause: "Code generation issue",
			Suggestions: []string{"Improve code generation prompts", "Add better error handling", "Validate generated code"},
		},
	},
}

// classifyFailure maps an error message onto a known failure class, falling
// back to unknown.
func classifyFailure(errText string) *FailureAnalysis {
	lower := strings.ToLower(errText)
	for _, class := range failureClasses {
		if class.match(lower) {
			analysis := class.analysis
			return &analysis
		}
	}
	return &FailureAnalysis{ErrorType: "unknown", Suggestions: []string{}}
}
