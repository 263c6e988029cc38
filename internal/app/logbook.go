package app

import (
	"sync"
	"time"
)

// LogBook keeps the most recent user-visible log lines
type LogBook struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func NewLogBook(max int) *LogBook {
	if max <= 0 {
		max = 500
	}
	return &LogBook{max: max}
}

// Add records msg stamped "[HH:MM:SS]" and returns the stored line
func (b *LogBook) Add(at time.Time, msg string) string {
	line := "[" + at.Format("15:04:05") + "] " + msg

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append([]string(nil), b.lines[over:]...)
	}
	return line
}

func (b *LogBook) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *LogBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}
