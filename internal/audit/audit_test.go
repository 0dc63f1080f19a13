package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEntryComplete(t *testing.T) {
	e := Start("req-1", "searchMedia")
	assert.NotEmpty(t, e.ID)

	e.Complete("")
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Empty(t, e.ErrorMessage)
	assert.GreaterOrEqual(t, e.DurationMs, int64(0))

	failed := Start("req-1", "getSeasons")
	failed.Complete("No series with id x.")
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "No series with id x.", failed.ErrorMessage)
}

func TestStoreRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{RequestID: "r1", Tool: "searchMedia", Status: StatusSuccess, StartedAt: base, DurationMs: 12},
		{RequestID: "r1", Tool: "playMedia", Status: StatusSuccess, StartedAt: base.Add(time.Second), DurationMs: 1},
		{RequestID: "r2", Tool: "searchMedia", Status: StatusError, ErrorMessage: "boom", StartedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	all, err := s.Recent(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r2", all[0].RequestID, "newest first")
	assert.Equal(t, "boom", all[0].ErrorMessage)
	assert.Equal(t, int64(12), all[2].DurationMs)

	search, err := s.Recent(ctx, QueryFilter{Tool: "searchMedia"})
	require.NoError(t, err)
	assert.Len(t, search, 2)

	failed, err := s.Recent(ctx, QueryFilter{Status: StatusError})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "searchMedia", failed[0].Tool)

	byRequest, err := s.Recent(ctx, QueryFilter{RequestID: "r1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byRequest, 1)
	assert.Equal(t, "playMedia", byRequest[0].Tool)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Start("r", "themeToggle")))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(context.Background(), QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestStoreStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Empty(t, empty.ByTool)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, e := range []*Entry{
		{RequestID: "r1", Tool: "searchMedia", Status: StatusSuccess, DurationMs: 10},
		{RequestID: "r1", Tool: "searchMedia", Status: StatusError, ErrorMessage: "x", DurationMs: 30},
		{RequestID: "r2", Tool: "playMedia", Status: StatusSuccess, DurationMs: 2},
	} {
		e.StartedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Record(ctx, e))
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Success)
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, int64(30), st.MaxDurationMs)
	assert.InDelta(t, 14.0, st.AvgDurationMs, 0.01)

	require.Len(t, st.ByTool, 2)
	assert.Equal(t, "searchMedia", st.ByTool[0].Tool)
	assert.Equal(t, 2, st.ByTool[0].Total)
	assert.Equal(t, 1, st.ByTool[0].Errors)
	assert.InDelta(t, 20.0, st.ByTool[0].AvgDurationMs, 0.01)
	assert.Equal(t, "playMedia", st.ByTool[1].Tool)
}
