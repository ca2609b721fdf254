package knowledge

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// InsightRecord is a single stored insight with its retrieval bookkeeping.
type InsightRecord struct {
	// ID is a short content hash used for deduplication bookkeeping.
	ID string `json:"id"`
	// Timestamp is when the insight was first stored.
	Timestamp time.Time `json:"timestamp"`
	// Content is the insight text.
	Content string `json:"content"`
	// RelevanceScore decays with age and grows with usage.
	RelevanceScore float64 `json:"relevance_score"`
	// UsageCount tracks how often retrieval surfaced this insight.
	UsageCount int `json:"usage_count"`
}

// PatternRecord is a recurring observation grouped under a pattern type.
type PatternRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Pattern     string    `json:"pattern"`
	Occurrences int       `json:"occurrences"`
}

// AlgorithmRecord is a successful algorithm kept for reuse.
type AlgorithmRecord struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Code        string             `json:"code"`
	Performance map[string]float64 `json:"performance"`
	Timestamp   time.Time          `json:"timestamp"`
	UsageCount  int                `json:"usage_count"`
}

// FailureRecord is a failure description with an optional known fix.
type FailureRecord struct {
	Description string    `json:"description"`
	Solution    string    `json:"solution,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Occurrences int       `json:"occurrences"`
}

// RelevantInsight pairs an insight with its similarity to a query.
type RelevantInsight struct {
	Content   string    `json:"insight"`
	Relevance float64   `json:"relevance"`
	Timestamp time.Time `json:"timestamp"`
}

// AlgorithmMatch pairs a stored algorithm with its similarity to a query.
type AlgorithmMatch struct {
	Name      string          `json:"name"`
	Algorithm AlgorithmRecord `json:"algorithm"`
	Relevance float64         `json:"relevance"`
}

// Solution is a known fix for a failure similar to a queried error.
type Solution struct {
	ErrorType   string  `json:"error_type"`
	Solution    string  `json:"solution"`
	Relevance   float64 `json:"relevance"`
	Occurrences int     `json:"occurrences"`
}

// InsightUsage is a summary entry for a frequently retrieved insight.
type InsightUsage struct {
	Content    string `json:"content"`
	UsageCount int    `json:"usage_count"`
}

// PatternSummary is the most common pattern of a given type.
type PatternSummary struct {
	Type        string `json:"type"`
	Pattern     string `json:"pattern"`
	Occurrences int    `json:"occurrences"`
}

// Summary is an aggregate view over everything the store holds.
type Summary struct {
	TotalInsights    int              `json:"total_insights"`
	PatternTypes     []string         `json:"pattern_types"`
	TotalPatterns    int              `json:"total_patterns"`
	AlgorithmsStored int              `json:"algorithms_stored"`
	FailureTypes     int              `json:"failure_types"`
	MostUsedInsights []InsightUsage   `json:"most_used_insights"`
	CommonPatterns   []PatternSummary `json:"common_patterns"`
}

// contentID derives a short stable identifier from record content.
func contentID(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:8]
}
