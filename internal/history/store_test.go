package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newStore(t)

	run, err := s.CreateRun()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)

	require.NoError(t, s.AppendRecord(run.ID, Record{
		AwemeID:      "7001",
		AuthorName:   "trail guide",
		Description:  "sunset hike",
		MatchedGroup: "travel",
		Action:       ActionCommented,
		CommentText:  "nice",
	}))
	require.NoError(t, s.AppendRecord(run.ID, Record{
		AwemeID: "7002",
		Action:  ActionSkipped,
		Detail:  "blocked keyword",
	}))

	require.NoError(t, s.EndRun(run.ID, StatusCompleted, 1, ""))

	got, records, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, got.CommentCount)
	assert.False(t, got.EndedAt.IsZero())

	require.Len(t, records, 2)
	assert.Equal(t, "7001", records[0].AwemeID)
	assert.Equal(t, ActionCommented, records[0].Action)
	assert.Equal(t, "nice", records[0].CommentText)
	assert.Equal(t, ActionSkipped, records[1].Action)
	assert.Equal(t, "blocked keyword", records[1].Detail)
}

func TestRetentionKeepsTenRuns(t *testing.T) {
	s := newStore(t)

	for i := 0; i < Retained+3; i++ {
		_, err := s.CreateRun()
		require.NoError(t, err)
	}

	runs, err := s.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, Retained)
}

func TestEvictionRemovesRecords(t *testing.T) {
	s := newStore(t)

	first, err := s.CreateRun()
	require.NoError(t, err)
	require.NoError(t, s.AppendRecord(first.ID, Record{AwemeID: "7001", Action: ActionSkipped}))

	// Force the first run out of the retention window.
	_, err = s.db.Exec(`UPDATE runs SET started_at = started_at - 86400 WHERE id = ?`, first.ID)
	require.NoError(t, err)
	for i := 0; i < Retained; i++ {
		_, err := s.CreateRun()
		require.NoError(t, err)
	}

	_, _, err = s.GetRun(first.ID)
	assert.Error(t, err)

	var orphans int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM video_records WHERE run_id = ?`, first.ID).Scan(&orphans))
	assert.Zero(t, orphans, "records of evicted runs are removed")
}

func TestCrashSweep(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	run, err := s.CreateRun()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopen simulates a restart after a crash mid-run.
	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, _, err := s2.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "interrupted", got.Error)
	assert.False(t, got.EndedAt.IsZero())
}

func TestDeleteRun(t *testing.T) {
	s := newStore(t)

	run, err := s.CreateRun()
	require.NoError(t, err)
	require.NoError(t, s.AppendRecord(run.ID, Record{AwemeID: "7001", Action: ActionSkipped}))

	require.NoError(t, s.DeleteRun(run.ID))
	_, _, err = s.GetRun(run.ID)
	assert.Error(t, err)

	assert.Error(t, s.DeleteRun(run.ID), "deleting a missing run errors")
}

func TestRunningRun(t *testing.T) {
	s := newStore(t)

	_, ok, err := s.RunningRun()
	require.NoError(t, err)
	assert.False(t, ok)

	run, err := s.CreateRun()
	require.NoError(t, err)

	got, ok, err := s.RunningRun()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, run.ID, got.ID)

	require.NoError(t, s.EndRun(run.ID, StatusCompleted, 0, ""))
	_, ok, err = s.RunningRun()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newStore(t)

	a, err := s.CreateRun()
	require.NoError(t, err)
	b, err := s.CreateRun()
	require.NoError(t, err)

	// Separate the start times so ordering is unambiguous.
	_, err = s.db.Exec(`UPDATE runs SET started_at = started_at - 60 WHERE id = ?`, a.ID)
	require.NoError(t, err)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b.ID, runs[0].ID)
	assert.Equal(t, a.ID, runs[1].ID)
}
