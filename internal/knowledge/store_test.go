package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T, opts Options) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	opts.Clock = clock.Now
	s, err := NewStore(opts)
	require.NoError(t, err)
	return s, clock
}

func TestAddInsight_Deduplicates(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddInsight("memoization speeds up fibonacci"))
	require.NoError(t, s.AddInsight("memoization speeds up fibonacci"))
	assert.Equal(t, 1, s.InsightCount())

	require.NoError(t, s.AddInsight("binary search halves the search space"))
	assert.Equal(t, 2, s.InsightCount())
}

func TestAddInsight_EnforcesCapacity(t *testing.T) {
	s, _ := newTestStore(t, Options{MaxInsights: 3})

	insights := []string{
		"alpha one",
		"bravo two",
		"charlie three",
		"delta four",
		"echo five",
	}
	for _, ins := range insights {
		require.NoError(t, s.AddInsight(ins))
	}
	assert.Equal(t, 3, s.InsightCount())
}

func TestRelevantInsights(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddInsight("sorting algorithms improve performance quickly"))
	require.NoError(t, s.AddInsight("memory allocation reduces cache misses"))

	got := s.RelevantInsights("sorting performance", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "sorting algorithms improve performance quickly", got[0].Content)
	assert.InDelta(t, 0.4, got[0].Relevance, 1e-9)

	// Retrieval bumps the usage count of what it returned.
	summary := s.Summarize()
	require.NotEmpty(t, summary.MostUsedInsights)
	assert.Equal(t, 1, summary.MostUsedInsights[0].UsageCount)
}

func TestRelevantInsights_Limit(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddInsight("loop unrolling speeds up tight loops"))
	require.NoError(t, s.AddInsight("loop fusion speeds up pipelines"))
	require.NoError(t, s.AddInsight("loop tiling speeds up matrix code"))

	got := s.RelevantInsights("loop speeds", 2)
	assert.Len(t, got, 2)
}

func TestRelevanceScores_DecayAndUsageBoost(t *testing.T) {
	s, clock := newTestStore(t, Options{})

	require.NoError(t, s.AddInsight("caching avoids repeated work"))
	require.Equal(t, 1.0, s.insights[0].RelevanceScore)

	// Ten weeks later, retrieved once: 0.95^10 decay times a 1.1 usage boost.
	clock.now = clock.now.Add(70 * 24 * time.Hour)
	got := s.RelevantInsights("caching repeated work", 5)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.6586, s.insights[0].RelevanceScore, 1e-3)
}

func TestPatterns_MergeAndFilter(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddPattern("success", "small input sizes finish fast"))
	require.NoError(t, s.AddPattern("success", "small input sizes finish fast"))
	require.NoError(t, s.AddPattern("success", "recursion depth causes stack growth"))

	got := s.Patterns("success", 2)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Occurrences)

	assert.Empty(t, s.Patterns("failure", 1))
}

func TestAlgorithms(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddAlgorithm("fib_memo", "memoized fibonacci computation", "def fib(n): ...", map[string]float64{"score": 2.5}))

	algo, ok := s.Algorithm("fib_memo")
	require.True(t, ok)
	assert.Equal(t, "memoized fibonacci computation", algo.Description)

	_, ok = s.Algorithm("missing")
	assert.False(t, ok)

	matches := s.SearchAlgorithms("memoized fibonacci computation fib_memo")
	require.Len(t, matches, 1)
	assert.Equal(t, "fib_memo", matches[0].Name)

	assert.Empty(t, s.SearchAlgorithms("graph coloring"))
}

func TestFailures_MergeAndBackfillSolution(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddFailure("timeout", "execution exceeded the time limit", ""))
	require.NoError(t, s.AddFailure("timeout", "execution exceeded the time limit", "reduce input size"))

	solutions := s.FailureSolutions("execution exceeded the time limit")
	require.Len(t, solutions, 1)
	assert.Equal(t, "timeout", solutions[0].ErrorType)
	assert.Equal(t, "reduce input size", solutions[0].Solution)
	assert.Equal(t, 2, solutions[0].Occurrences)
}

func TestFailureSolutions_Ordering(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddFailure("memory", "allocation grew past the limit quickly", "allocate lazily"))
	require.NoError(t, s.AddFailure("timeout", "allocation grew past the limit slowly", "cap the loop"))
	require.NoError(t, s.AddFailure("timeout", "allocation grew past the limit slowly", ""))

	solutions := s.FailureSolutions("allocation grew past the limit quickly")
	require.Len(t, solutions, 2)
	// Exact match outranks the partial one regardless of occurrences.
	assert.Equal(t, "allocate lazily", solutions[0].Solution)
	assert.Equal(t, "cap the loop", solutions[1].Solution)
}

func TestSummarize(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	require.NoError(t, s.AddInsight("first insight about sorting"))
	require.NoError(t, s.AddPattern("success", "vectorized loops win"))
	require.NoError(t, s.AddPattern("success", "vectorized loops win"))
	require.NoError(t, s.AddAlgorithm("qs", "quicksort variant", "", nil))
	require.NoError(t, s.AddFailure("syntax", "missing colon on line two", ""))

	summary := s.Summarize()
	assert.Equal(t, 1, summary.TotalInsights)
	assert.Equal(t, []string{"success"}, summary.PatternTypes)
	assert.Equal(t, 1, summary.TotalPatterns)
	assert.Equal(t, 1, summary.AlgorithmsStored)
	assert.Equal(t, 1, summary.FailureTypes)
	require.Len(t, summary.CommonPatterns, 1)
	assert.Equal(t, 2, summary.CommonPatterns[0].Occurrences)
}

func TestPersistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, _ := newTestStore(t, Options{Dir: dir})
	require.NoError(t, s.AddInsight("persisted insight about hashing"))
	require.NoError(t, s.AddPattern("failure", "off by one at boundaries"))
	require.NoError(t, s.AddAlgorithm("hash_join", "hash join for wide tables", "def join(): ...", nil))
	require.NoError(t, s.AddFailure("name", "variable used before assignment", "define it first"))

	reopened, _ := newTestStore(t, Options{Dir: dir})
	assert.Equal(t, 1, reopened.InsightCount())
	assert.Len(t, reopened.Patterns("failure", 1), 1)
	_, ok := reopened.Algorithm("hash_join")
	assert.True(t, ok)
	assert.Len(t, reopened.FailureSolutions("variable used before assignment"), 1)
}

func TestCorruptFilesStartEmpty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"insights.json", "patterns.json", "knowledge.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644))
	}

	s, _ := newTestStore(t, Options{Dir: dir})
	assert.Equal(t, 0, s.InsightCount())
	assert.Empty(t, s.Summarize().PatternTypes)
}

func TestStore_CapacityInvariant(outer *testing.T) {
	rapid.Check(outer, func(t *rapid.T) {
		s, err := NewStore(Options{Dir: outer.TempDir(), MaxInsights: 10})
		if err != nil {
			t.Fatalf("open store: %v", err)
		}

		n := rapid.IntRange(0, 30).Draw(t, "n")
		for i := 0; i < n; i++ {
			words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{2,8}`), 1, 6).Draw(t, "words")
			if err := s.AddInsight(strings.Join(words, " ")); err != nil {
				t.Fatalf("add insight: %v", err)
			}
		}
		if got := s.InsightCount(); got > 10 {
			t.Fatalf("capacity exceeded: %d insights stored", got)
		}
	})
}

func TestStore_DedupIdempotent(outer *testing.T) {
	rapid.Check(outer, func(t *rapid.T) {
		s, err := NewStore(Options{Dir: outer.TempDir()})
		if err != nil {
			t.Fatalf("open store: %v", err)
		}

		words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{2,8}`), 1, 6).Draw(t, "words")
		content := strings.Join(words, " ")
		if err := s.AddInsight(content); err != nil {
			t.Fatalf("add insight: %v", err)
		}
		before := s.InsightCount()
		if err := s.AddInsight(content); err != nil {
			t.Fatalf("re-add insight: %v", err)
		}
		if got := s.InsightCount(); got != before {
			t.Fatalf("duplicate changed count: %d != %d", got, before)
		}
	})
}

func TestStore_DecayMonotonicity(outer *testing.T) {
	rapid.Check(outer, func(t *rapid.T) {
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		clock := &testClock{now: base}
		s, err := NewStore(Options{Dir: outer.TempDir(), Clock: clock.Now})
		if err != nil {
			t.Fatalf("open store: %v", err)
		}

		offsets := rapid.SliceOfN(rapid.IntRange(0, 365), 2, 10).Draw(t, "offsets")
		for i, days := range offsets {
			clock.now = base.AddDate(0, 0, days)
			content := fmt.Sprintf("observation%d about subject%d detail%d", i, i, i)
			if err := s.AddInsight(content); err != nil {
				t.Fatalf("add insight: %v", err)
			}
		}

		clock.now = base.AddDate(0, 0, 400)
		s.refreshRelevance()

		// All usage counts are equal, so age alone orders relevance:
		// an older insight never outranks a newer one.
		for i := range s.insights {
			for j := range s.insights {
				older, newer := s.insights[i], s.insights[j]
				if older.Timestamp.Before(newer.Timestamp) &&
					older.RelevanceScore > newer.RelevanceScore+1e-12 {
					t.Fatalf("insight from %v outranks one from %v (%.6f > %.6f)",
						older.Timestamp, newer.Timestamp,
						older.RelevanceScore, newer.RelevanceScore)
				}
			}
		}
	})
}
