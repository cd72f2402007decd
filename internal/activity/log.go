package activity

import (
	"fmt"
	"sync"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Entry struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Log is the operator-facing activity feed: append-only, timestamped, capped.
// Once capacity is reached the oldest entry is evicted. The Log is the single
// writer of its entries; other components only call Append.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
	now     func() time.Time
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 200
	}
	return &Log{cap: capacity, now: time.Now}
}

func (l *Log) Append(sev Severity, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Time:     l.now().UTC(),
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Snapshot returns the entries oldest-first.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
