package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/goal-distance/internal/monitoring"
	"github.com/banshee-data/goal-distance/internal/timeutil"
	"github.com/banshee-data/goal-distance/internal/units"
)

// Stats tracks loop counters with thread-safe operations.
type Stats struct {
	mu    sync.Mutex
	clock timeutil.Clock

	frames      int64
	published   int64
	dropped     int64
	skipped     int64
	angleAbsent int64
	recordErrs  int64
	failures    int

	lastDistance float64
	lastAngle    *float64
	lastReset    time.Time
}

// Snapshot is a copy of the counters since the last reset.
type Snapshot struct {
	Frames      int64
	Published   int64
	Dropped     int64
	Skipped     int64
	AngleAbsent int64
	RecordErrs  int64
	// Failures is the acquirer's current consecutive vertex failure count.
	Failures int
	Duration time.Duration
}

// NewStats creates a Stats instance.
func NewStats(clock timeutil.Clock) *Stats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Stats{clock: clock, lastReset: clock.Now()}
}

func (s *Stats) addFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

func (s *Stats) addDropped(failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
	s.failures = failures
}

func (s *Stats) addSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

func (s *Stats) addRecordErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordErrs++
}

func (s *Stats) addPublished(distance float64, angle *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published++
	s.failures = 0
	if angle == nil {
		s.angleAbsent++
	}
	s.lastDistance = distance
	s.lastAngle = angle
}

// Due reports whether interval has elapsed since the last reset.
func (s *Stats) Due(interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.lastReset) >= interval
}

// GetAndReset returns the current counters and resets them.
func (s *Stats) GetAndReset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap := Snapshot{
		Frames:      s.frames,
		Published:   s.published,
		Dropped:     s.dropped,
		Skipped:     s.skipped,
		AngleAbsent: s.angleAbsent,
		RecordErrs:  s.recordErrs,
		Failures:    s.failures,
		Duration:    now.Sub(s.lastReset),
	}
	s.frames, s.published, s.dropped, s.skipped, s.angleAbsent, s.recordErrs = 0, 0, 0, 0, 0, 0
	s.lastReset = now
	return snap
}

// LogStats logs and resets the counters. Distances are shown in unit.
func (s *Stats) LogStats(unit string) {
	s.mu.Lock()
	lastDistance, lastAngle := s.lastDistance, s.lastAngle
	s.mu.Unlock()

	snap := s.GetAndReset()
	if snap.Frames == 0 && snap.Dropped == 0 {
		return
	}
	secs := snap.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}

	msg := fmt.Sprintf("Goal stats (/sec): %.1f frames, %.1f published", float64(snap.Frames)/secs, float64(snap.Published)/secs)
	if snap.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", snap.Skipped)
	}
	if snap.Dropped > 0 {
		msg += fmt.Sprintf(", %d dropped (%d consecutive vertex failures)", snap.Dropped, snap.Failures)
	}
	if snap.AngleAbsent > 0 {
		msg += fmt.Sprintf(", %d without angle", snap.AngleAbsent)
	}
	if snap.RecordErrs > 0 {
		msg += fmt.Sprintf(", %d record errors", snap.RecordErrs)
	}
	if snap.Published > 0 {
		msg += "; last " + units.FormatLength(lastDistance, unit)
		if lastAngle != nil {
			msg += fmt.Sprintf(" at %.1f°", *lastAngle)
		}
	}
	monitoring.Logf("%s", msg)
}
