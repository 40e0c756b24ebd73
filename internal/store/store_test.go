package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helioscan/internal/cleaning"
	"helioscan/internal/potential"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetStats()
	require.NoError(t, err)
	for _, table := range []string{"runs", "cleaning_reports", "station_metrics", "rankings"} {
		assert.Contains(t, stats, table)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	started := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateRun("run-1", started))

	latest, err := s.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-1", latest.ID)
	assert.Equal(t, "running", latest.Status)
	// In-flight runs have a NULL finish time; it reads back as the start.
	assert.True(t, latest.FinishedAt.Equal(latest.StartedAt),
		"expected FinishedAt fallback to StartedAt, got %v", latest.FinishedAt)

	require.NoError(t, s.FinishRun("run-1", "ok", "", 3, started.Add(time.Minute)))
	latest, err = s.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "ok", latest.Status)
	assert.Equal(t, 3, latest.Stations)
	assert.True(t, latest.FinishedAt.Equal(started.Add(time.Minute)),
		"expected recorded finish time, got %v", latest.FinishedAt)

	assert.Error(t, s.FinishRun("missing", "ok", "", 1, started),
		"finishing an unknown run must fail")
}

func TestLatestRun_Empty(t *testing.T) {
	s := newTestStore(t)
	latest, err := s.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSaveCleaningReport(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateRun("run-1", time.Now()))

	rep := &cleaning.Report{
		Station:         "benin",
		InitialRows:     1000,
		FinalRows:       990,
		Imputed:         map[string]int{"GHI": 12},
		OutliersRemoved: 10,
	}
	require.NoError(t, s.SaveCleaningReport("run-1", rep))

	// Re-saving the same station must upsert, not duplicate.
	rep.FinalRows = 985
	require.NoError(t, s.SaveCleaningReport("run-1", rep))
	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats["cleaning_reports"])
}

func TestSaveAndLoadMetrics(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateRun("run-1", time.Now()))

	m := potential.Metrics{
		MeanGHI:            240.5,
		StdGHI:             180.2,
		CV:                 74.9,
		Consistency:        25.1,
		PeakGHI:            1100,
		Peak95th:           820,
		OperationalHours:   4200,
		HighPotentialHours: 1800,
	}
	require.NoError(t, s.SaveMetrics("run-1", "benin", m))

	loaded, err := s.MetricsForRun("run-1")
	require.NoError(t, err)
	require.Contains(t, loaded, "benin")
	assert.Equal(t, 240.5, loaded["benin"]["mean_ghi"])
	assert.Equal(t, float64(1800), loaded["benin"]["high_potential_hours"])
}

func TestSaveAndLoadRankings(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateRun("run-1", time.Now()))

	ranked := []potential.Ranked{
		{Rank: 1, Station: "benin", CompositeScore: 250},
		{Rank: 2, Station: "togo", CompositeScore: 210},
	}
	require.NoError(t, s.SaveRankings("run-1", ranked))

	rows, err := s.RankingsForRun("run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "benin", rows[0].Station)
	assert.Equal(t, 1, rows[0].Rank)

	// Re-saving replaces the run's ranking.
	require.NoError(t, s.SaveRankings("run-1", ranked[:1]))
	rows, err = s.RankingsForRun("run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRunHistory(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateRun(id, base.Add(time.Duration(i)*time.Hour)))
	}

	runs, err := s.RunHistory(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID, "newest run first")
	assert.Equal(t, "b", runs[1].ID)
}
