package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Path: filepath.Join(t.TempDir(), "archive.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addEntry(t *testing.T, s *Store, id string, score float64, success bool, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.Add(context.Background(), Entry{
		ID:          id,
		Iteration:   1,
		Source:      "oracle",
		Description: "experiment " + id,
		Approach:    "approach " + id,
		Success:     success,
		Score:       score,
		CreatedAt:   createdAt,
	}))
}

func TestRecent_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	addEntry(t, s, "exp_1_0", 1.0, true, base)
	addEntry(t, s, "exp_1_1", 2.0, true, base.Add(time.Minute))
	addEntry(t, s, "exp_2_0", 0.5, false, base.Add(2*time.Minute))

	got, err := s.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exp_2_0", got[0].ID)
	assert.Equal(t, "exp_1_1", got[1].ID)
}

func TestBest_SuccessfulByScore(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	addEntry(t, s, "exp_1_0", 1.0, true, base)
	addEntry(t, s, "exp_1_1", 3.2, true, base.Add(time.Minute))
	addEntry(t, s, "exp_1_2", 5.0, false, base.Add(2*time.Minute))

	got, err := s.Best(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exp_1_1", got[0].ID)
	assert.Equal(t, "exp_1_0", got[1].ID)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Add(context.Background(), Entry{
		ID:          "exp_1_0",
		Description: "memoized fibonacci",
		Approach:    "dynamic programming",
		Success:     true,
	}))
	require.NoError(t, s.Add(context.Background(), Entry{
		ID:          "exp_1_1",
		Description: "bubble sort baseline",
		Approach:    "naive iteration",
	}))

	got, err := s.Search(context.Background(), "fibonacci", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "exp_1_0", got[0].ID)

	got, err = s.Search(context.Background(), "iteration", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "exp_1_1", got[0].ID)
}

func TestRoundTripFields(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := Entry{
		ID:            "exp_4_2",
		Iteration:     4,
		Source:        "mutation",
		Description:   "extended edge handling",
		Approach:      "extension of memoization",
		Success:       false,
		Score:         0,
		Error:         "execution timeout (30s)",
		ExecutionTime: 30.0,
		MemoryMB:      42.5,
		CreatedAt:     created,
	}
	require.NoError(t, s.Add(context.Background(), want))

	got, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestSummary(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stats, err := s.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	addEntry(t, s, "exp_1_0", 2.1, true, base)
	addEntry(t, s, "exp_1_1", 0, false, base.Add(time.Minute))

	stats, err = s.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Successful)
	assert.InDelta(t, 2.1, stats.BestScore, 1e-9)
}
