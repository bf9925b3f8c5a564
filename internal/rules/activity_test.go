package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"feedac/internal/feed"
)

func entriesAt(now time.Time, ages ...time.Duration) []feed.CommentEntry {
	out := make([]feed.CommentEntry, len(ages))
	for i, age := range ages {
		out[i] = feed.CommentEntry{CreateTime: now.Add(-age).Unix()}
	}
	return out
}

func TestCheckActivity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	t.Run("five or more, two recent", func(t *testing.T) {
		entries := entriesAt(now, 1*time.Hour, 36*time.Hour, 10*day, 10*day, 10*day, 1*time.Hour)
		got := CheckActivity(now, entries)
		assert.True(t, got.IsActive)
	})

	t.Run("five or more, only one recent in first five", func(t *testing.T) {
		// The sixth entry is recent but falls outside the window of
		// entries considered.
		entries := entriesAt(now, 1*time.Hour, 5*day, 5*day, 5*day, 5*day, 1*time.Hour)
		got := CheckActivity(now, entries)
		assert.False(t, got.IsActive)
	})

	t.Run("few entries, one within a day", func(t *testing.T) {
		got := CheckActivity(now, entriesAt(now, 5*day, 20*time.Hour))
		assert.True(t, got.IsActive)
	})

	t.Run("few entries, none within a day", func(t *testing.T) {
		got := CheckActivity(now, entriesAt(now, 30*time.Hour, 5*day))
		assert.False(t, got.IsActive)
	})

	t.Run("exactly one day old is not recent", func(t *testing.T) {
		got := CheckActivity(now, entriesAt(now, 24*time.Hour))
		assert.False(t, got.IsActive)
	})

	t.Run("exactly two days old is not recent", func(t *testing.T) {
		entries := entriesAt(now, 2*day, 2*day, 10*day, 10*day, 10*day)
		got := CheckActivity(now, entries)
		assert.False(t, got.IsActive)
	})

	t.Run("no entries", func(t *testing.T) {
		got := CheckActivity(now, nil)
		assert.False(t, got.IsActive)
		assert.Equal(t, "no recent comments", got.Reason)
	})

	t.Run("malformed timestamps never count", func(t *testing.T) {
		got := CheckActivity(now, []feed.CommentEntry{{CreateTime: 0}, {CreateTime: -5}})
		assert.False(t, got.IsActive)
	})
}
