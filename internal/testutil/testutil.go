// Package testutil provides shared test helpers.
package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/goal-distance/internal/monitoring"
)

// MuteLogs silences monitoring.Logf for the rest of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// LogBuffer collects formatted log lines. It is safe for concurrent use.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
}

// Lines returns a copy of the captured lines.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Contains reports whether any captured line contains substr.
func (b *LogBuffer) Contains(substr string) bool {
	for _, l := range b.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func (b *LogBuffer) logf(format string, v ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, fmt.Sprintf(format, v...))
}

// CaptureLogs routes monitoring.Logf into a LogBuffer until the test ends.
func CaptureLogs(t testing.TB) *LogBuffer {
	t.Helper()
	buf := &LogBuffer{}
	original := monitoring.Logf
	monitoring.SetLogger(buf.logf)
	t.Cleanup(func() { monitoring.Logf = original })
	return buf
}

// Float returns a pointer to v, for optional angle fields.
func Float(v float64) *float64 { return &v }
