package rules

import (
	"fmt"
	"time"

	"feedac/internal/feed"
)

// Activity is the outcome of the recent-commenter heuristic.
type Activity struct {
	IsActive bool
	Reason   string
}

const (
	activityWindowLarge = 2 * 24 * time.Hour
	activityWindowSmall = 24 * time.Hour
)

// CheckActivity classifies an author from the comment section of one of
// their items. With five or more entries, the author is active when at
// least two of the first five fall within the last two days. With one to
// four entries, a single entry within the last day suffices. No entries
// means inactive. Timestamps are unix seconds; non-positive values never
// count as recent.
func CheckActivity(now time.Time, entries []feed.CommentEntry) Activity {
	if len(entries) == 0 {
		return Activity{Reason: "no recent comments"}
	}

	if len(entries) >= 5 {
		recent := 0
		for _, e := range entries[:5] {
			if withinWindow(now, e.CreateTime, activityWindowLarge) {
				recent++
			}
		}
		if recent >= 2 {
			return Activity{IsActive: true, Reason: fmt.Sprintf("%d of first 5 comments within 2 days", recent)}
		}
		return Activity{Reason: fmt.Sprintf("only %d of first 5 comments within 2 days", recent)}
	}

	for _, e := range entries {
		if withinWindow(now, e.CreateTime, activityWindowSmall) {
			return Activity{IsActive: true, Reason: "a comment within the last day"}
		}
	}
	return Activity{Reason: fmt.Sprintf("none of %d comments within the last day", len(entries))}
}

func withinWindow(now time.Time, unixSec int64, window time.Duration) bool {
	if unixSec <= 0 {
		return false
	}
	return now.Sub(time.Unix(unixSec, 0)) < window
}
