package task

import (
	"fmt"
	"time"
)

// EventLevel classifies progress events.
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarn    EventLevel = "warn"
	LevelError   EventLevel = "error"
	LevelSuccess EventLevel = "success"
)

// Event is one progress notification from a running task.
type Event struct {
	Level   EventLevel
	Message string
	Time    time.Time
}

// emit delivers an event without ever blocking the run. A slow or absent
// consumer drops events rather than stalling the browser.
func (r *Runner) emit(level EventLevel, format string, args ...interface{}) {
	ev := Event{Level: level, Message: fmt.Sprintf(format, args...), Time: r.now()}
	select {
	case r.events <- ev:
	default:
	}
}
