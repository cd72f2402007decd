package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendAndSnapshot(t *testing.T) {
	l := NewLog(10)
	l.Append(SeverityInfo, "starting up")
	l.Append(SeveritySuccess, "order %s printed", "A-1")

	entries := l.Snapshot()
	require.Len(t, entries, 2)
	require.Equal(t, SeverityInfo, entries[0].Severity)
	require.Equal(t, "starting up", entries[0].Message)
	require.Equal(t, "order A-1 printed", entries[1].Message)
	require.False(t, entries[0].Time.IsZero())
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	l := NewLog(3)
	l.Append(SeverityInfo, "one")
	l.Append(SeverityInfo, "two")
	l.Append(SeverityInfo, "three")
	l.Append(SeverityInfo, "four")

	entries := l.Snapshot()
	require.Len(t, entries, 3)
	require.Equal(t, "two", entries[0].Message)
	require.Equal(t, "four", entries[2].Message)
}

func TestEntriesAreOrdered(t *testing.T) {
	l := NewLog(50)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	l.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	for i := 0; i < 5; i++ {
		l.Append(SeverityInfo, "entry %d", i)
	}
	entries := l.Snapshot()
	for i := 1; i < len(entries); i++ {
		require.True(t, entries[i].Time.After(entries[i-1].Time))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewLog(10)
	l.Append(SeverityWarning, "original")
	snap := l.Snapshot()
	snap[0].Message = "mutated"
	require.Equal(t, "original", l.Snapshot()[0].Message)
}
