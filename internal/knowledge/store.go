// Package knowledge maintains the accumulated memory of the research loop:
// insights distilled from experiment analyses, recurring patterns, reusable
// algorithms, and failure modes with their known fixes. Everything is held in
// memory and mirrored to JSON files so a run can resume where it stopped.
package knowledge

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rand/conjecture/internal/similarity"
)

// Options configures a Store.
type Options struct {
	// Dir is the directory holding insights.json, patterns.json and
	// knowledge.json.
	Dir string

	// Metric scores text similarity for deduplication and retrieval.
	// Defaults to Jaccard token overlap.
	Metric similarity.Metric

	// MaxInsights bounds the insight list. Defaults to 500.
	MaxInsights int

	// RelevanceThreshold is the minimum similarity for an insight to be
	// returned from RelevantInsights. Defaults to 0.05.
	RelevanceThreshold float64

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	Logger *slog.Logger
}

// Similarity thresholds for merging near-duplicate records.
const (
	insightDupThreshold   = 0.9
	patternDupThreshold   = 0.8
	failureDupThreshold   = 0.8
	algorithmThreshold    = 0.5
	failureQueryThreshold = 0.6
)

// Store is the knowledge base. All methods are safe for concurrent use.
type Store struct {
	dir       string
	metric    similarity.Metric
	maxStored int
	threshold float64
	clock     func() time.Time
	logger    *slog.Logger

	mu         sync.Mutex
	insights   []InsightRecord
	patterns   map[string][]PatternRecord
	algorithms map[string]AlgorithmRecord
	failures   map[string][]FailureRecord
}

// NewStore opens the knowledge base rooted at opts.Dir, loading any state a
// previous run left behind. Unreadable or corrupt files start empty rather
// than failing the run.
func NewStore(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("knowledge: dir is required")
	}
	if opts.Metric == nil {
		opts.Metric = similarity.Jaccard{}
	}
	if opts.MaxInsights <= 0 {
		opts.MaxInsights = 500
	}
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = 0.05
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		dir:        opts.Dir,
		metric:     opts.Metric,
		maxStored:  opts.MaxInsights,
		threshold:  opts.RelevanceThreshold,
		clock:      opts.Clock,
		logger:     opts.Logger,
		patterns:   map[string][]PatternRecord{},
		algorithms: map[string]AlgorithmRecord{},
		failures:   map[string][]FailureRecord{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// AddInsight stores an insight unless a near-duplicate already exists. When
// the store exceeds its capacity the lowest-ranked insights are evicted.
func (s *Store) AddInsight(content string) error {
	if content == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.insights {
		if s.metric.Score(existing.Content, content) > insightDupThreshold {
			return nil
		}
	}

	s.insights = append(s.insights, InsightRecord{
		ID:             contentID(content),
		Timestamp:      s.clock(),
		Content:        content,
		RelevanceScore: 1.0,
		UsageCount:     0,
	})

	if len(s.insights) > s.maxStored {
		s.rankInsights()
		s.insights = s.insights[:s.maxStored]
	}

	return s.saveInsights()
}

// RelevantInsights returns up to limit insights similar to the query, most
// relevant first. Returned insights have their usage counts bumped, and all
// relevance scores are refreshed against the current clock.
func (s *Store) RelevantInsights(query string, limit int) []RelevantInsight {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.insights) == 0 {
		return nil
	}

	var scored []RelevantInsight
	for i := range s.insights {
		score := s.metric.Score(query, s.insights[i].Content)
		if score > s.threshold {
			scored = append(scored, RelevantInsight{
				Content:   s.insights[i].Content,
				Relevance: score,
				Timestamp: s.insights[i].Timestamp,
			})
			s.insights[i].UsageCount++
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})

	s.refreshRelevance()
	if err := s.saveInsights(); err != nil {
		s.logger.Warn("persisting insight usage failed", "error", err)
	}

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// refreshRelevance recomputes every insight's relevance score: a 5% weekly
// age decay times a 10%-per-use boost. Caller holds the lock.
func (s *Store) refreshRelevance() {
	now := s.clock()
	for i := range s.insights {
		ageDays := now.Sub(s.insights[i].Timestamp).Hours() / 24
		ageFactor := math.Pow(0.95, ageDays/7)
		usageFactor := 1 + float64(s.insights[i].UsageCount)*0.1
		s.insights[i].RelevanceScore = ageFactor * usageFactor
	}
}

// rankInsights orders insights by relevance, breaking ties by recency.
// Caller holds the lock.
func (s *Store) rankInsights() {
	sort.SliceStable(s.insights, func(i, j int) bool {
		a, b := s.insights[i], s.insights[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		return a.Timestamp.After(b.Timestamp)
	})
}

// AddPattern records an observation under a pattern type. A near-duplicate
// pattern of the same type has its occurrence count bumped instead.
func (s *Store) AddPattern(patternType, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.patterns[patternType] {
		if s.metric.Score(s.patterns[patternType][i].Pattern, pattern) > patternDupThreshold {
			s.patterns[patternType][i].Occurrences++
			return s.savePatterns()
		}
	}

	s.patterns[patternType] = append(s.patterns[patternType], PatternRecord{
		ID:          contentID(pattern),
		Timestamp:   s.clock(),
		Pattern:     pattern,
		Occurrences: 1,
	})
	return s.savePatterns()
}

// Patterns returns patterns of the given type seen at least minOccurrences
// times, most frequent first.
func (s *Store) Patterns(patternType string, minOccurrences int) []PatternRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PatternRecord
	for _, p := range s.patterns[patternType] {
		if p.Occurrences >= minOccurrences {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Occurrences > out[j].Occurrences
	})
	return out
}

// AddAlgorithm stores a successful algorithm, replacing any previous entry
// with the same name.
func (s *Store) AddAlgorithm(name, description, code string, performance map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.algorithms[name] = AlgorithmRecord{
		Name:        name,
		Description: description,
		Code:        code,
		Performance: performance,
		Timestamp:   s.clock(),
	}
	return s.saveKnowledge()
}

// Algorithm retrieves a stored algorithm by name.
func (s *Store) Algorithm(name string) (AlgorithmRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	algo, ok := s.algorithms[name]
	return algo, ok
}

// SearchAlgorithms finds stored algorithms whose name and description
// resemble the query, most relevant first.
func (s *Store) SearchAlgorithms(query string) []AlgorithmMatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []AlgorithmMatch
	for name, algo := range s.algorithms {
		score := s.metric.Score(query, algo.Description+" "+name)
		if score > algorithmThreshold {
			results = append(results, AlgorithmMatch{Name: name, Algorithm: algo, Relevance: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	return results
}

// AddFailure records a failure under an error type. A similar existing
// failure has its occurrence count bumped, and gains the solution if it had
// none.
func (s *Store) AddFailure(errorType, description, solution string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.failures[errorType] {
		if s.metric.Score(s.failures[errorType][i].Description, description) > failureDupThreshold {
			s.failures[errorType][i].Occurrences++
			if solution != "" && s.failures[errorType][i].Solution == "" {
				s.failures[errorType][i].Solution = solution
			}
			return s.saveKnowledge()
		}
	}

	s.failures[errorType] = append(s.failures[errorType], FailureRecord{
		Description: description,
		Solution:    solution,
		Timestamp:   s.clock(),
		Occurrences: 1,
	})
	return s.saveKnowledge()
}

// FailureSolutions returns known fixes for failures resembling the given
// error, ordered by relevance and then by how often the failure recurred.
func (s *Store) FailureSolutions(errorDescription string) []Solution {
	s.mu.Lock()
	defer s.mu.Unlock()

	var solutions []Solution
	for errorType, failures := range s.failures {
		for _, f := range failures {
			if f.Solution == "" {
				continue
			}
			score := s.metric.Score(errorDescription, f.Description)
			if score > failureQueryThreshold {
				solutions = append(solutions, Solution{
					ErrorType:   errorType,
					Solution:    f.Solution,
					Relevance:   score,
					Occurrences: f.Occurrences,
				})
			}
		}
	}
	sort.SliceStable(solutions, func(i, j int) bool {
		a, b := solutions[i], solutions[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		return a.Occurrences > b.Occurrences
	})
	return solutions
}

// Summarize reports aggregate statistics over the stored knowledge,
// including the five most retrieved insights and the most common pattern of
// each type.
func (s *Store) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		TotalInsights:    len(s.insights),
		AlgorithmsStored: len(s.algorithms),
		FailureTypes:     len(s.failures),
	}
	for patternType, patterns := range s.patterns {
		summary.PatternTypes = append(summary.PatternTypes, patternType)
		summary.TotalPatterns += len(patterns)
	}
	sort.Strings(summary.PatternTypes)

	if len(s.insights) > 0 {
		byUsage := make([]InsightRecord, len(s.insights))
		copy(byUsage, s.insights)
		sort.SliceStable(byUsage, func(i, j int) bool {
			return byUsage[i].UsageCount > byUsage[j].UsageCount
		})
		if len(byUsage) > 5 {
			byUsage = byUsage[:5]
		}
		for _, ins := range byUsage {
			summary.MostUsedInsights = append(summary.MostUsedInsights, InsightUsage{
				Content:    ins.Content,
				UsageCount: ins.UsageCount,
			})
		}
	}

	for _, patternType := range summary.PatternTypes {
		patterns := s.patterns[patternType]
		if len(patterns) == 0 {
			continue
		}
		most := patterns[0]
		for _, p := range patterns[1:] {
			if p.Occurrences > most.Occurrences {
				most = p
			}
		}
		summary.CommonPatterns = append(summary.CommonPatterns, PatternSummary{
			Type:        patternType,
			Pattern:     most.Pattern,
			Occurrences: most.Occurrences,
		})
	}

	return summary
}

// InsightCount reports how many insights are currently stored.
func (s *Store) InsightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.insights)
}
