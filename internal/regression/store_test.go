package regression

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(id string, started time.Time, cases ...CaseResult) *Report {
	rep := &Report{
		RunID:          id,
		Suite:          "default",
		Preset:         "default",
		LexiconVersion: "test",
		StartedAt:      started,
		Duration:       1500 * time.Millisecond,
		Total:          len(cases),
		Cases:          cases,
	}
	for _, c := range cases {
		if c.Passed {
			rep.Passed++
		}
	}
	return rep
}

func TestStoreRoundTrip(t *testing.T) {
	s, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, report("run-1", t0,
		CaseResult{CaseID: "a", Passed: true},
		CaseResult{CaseID: "b", Passed: false, Fields: []string{"level", "source"}},
	)))
	require.NoError(t, s.SaveRun(ctx, report("run-2", t0.Add(time.Hour),
		CaseResult{CaseID: "b", Passed: true},
	)))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "run-1", runs[1].RunID)
	assert.True(t, runs[1].StartedAt.Equal(t0))
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.Equal(t, 2, runs[1].Total)
	assert.Equal(t, 1, runs[1].Passed)

	hist, err := s.CaseHistory(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Passed)
	assert.Nil(t, hist[0].Fields)
	assert.False(t, hist[1].Passed)
	assert.Equal(t, []string{"level", "source"}, hist[1].Fields)

	limited, err := s.RecentRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreRejectsDuplicateRun(t *testing.T) {
	s, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rep := report("run-1", time.Now(), CaseResult{CaseID: "a", Passed: true})
	require.NoError(t, s.SaveRun(ctx, rep))
	assert.Error(t, s.SaveRun(ctx, rep))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStoreSchemaHoldsNoTranscripts(t *testing.T) {
	s, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.db.Query(`SELECT sql FROM sqlite_master WHERE sql IS NOT NULL`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var ddl string
		require.NoError(t, rows.Scan(&ddl))
		assert.NotContains(t, strings.ToLower(ddl), "transcript")
	}
	require.NoError(t, rows.Err())
}

func TestStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "regression.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.SaveRun(context.Background(), report("run-1", time.Now(), CaseResult{CaseID: "a", Passed: true})))
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
}
