package agent

import (
	"time"
)

// LogEntry is one append-only record of a pipeline step. Input and Outcome
// are short summaries; full payloads go to the zap logger.
type LogEntry struct {
	Step      string
	Input     string
	Outcome   string
	Timestamp time.Time
}

// executionLog collects the entries for one request. It is owned by the
// orchestrator and exposed read-only through Response.Log.
type executionLog struct {
	entries []LogEntry
}

func (l *executionLog) append(step, input, outcome string) {
	l.entries = append(l.entries, LogEntry{
		Step:      step,
		Input:     summarize(input, 120),
		Outcome:   summarize(outcome, 200),
		Timestamp: time.Now(),
	})
}

// snapshot returns a copy so callers cannot mutate the log.
func (l *executionLog) snapshot() []LogEntry {
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func summarize(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
