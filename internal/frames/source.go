// Package frames acquires aligned depth frames for the goal estimator.
//
// A Source delivers raw frame sets; an Aligner turns a raw set into a
// goal.Frame with a computed vertex map. Vertex computation can fail
// transiently; the Acquirer recovers from that by rebuilding its Aligner
// and dropping one frame set, so the capture loop never sees the glitch as
// anything but a skipped iteration.
package frames

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/goal-distance/internal/goal"
	"github.com/banshee-data/goal-distance/internal/monitoring"
)

var (
	// ErrVerticesUnavailable is the transient failure an Aligner reports when
	// the point cloud cannot be computed for a frame set.
	ErrVerticesUnavailable = errors.New("frames: vertices unavailable")
	// ErrFrameDropped is returned by Acquirer.Next after recovering from a
	// vertex failure. The caller continues with the next iteration.
	ErrFrameDropped = errors.New("frames: frame dropped after resync")
	// ErrSourceStopped is returned by a source after Stop.
	ErrSourceStopped = errors.New("frames: source stopped")
)

// RawFrames is one unaligned depth + colour frame set.
type RawFrames struct {
	Seq       uint64
	Timestamp time.Time

	Width  int
	Height int

	Depth      []uint16
	DepthScale float64
	HasColor   bool

	// Corrupt marks a set whose point cloud cannot be computed. Drivers set
	// it when the SDK reports a misaligned frame.
	Corrupt bool
}

// Aligner aligns a raw frame set and computes its vertex map.
type Aligner interface {
	Align(raw *RawFrames) (*goal.Frame, error)
}

// Source is a blocking producer of raw frame sets.
type Source interface {
	// WaitForFrames blocks until the next frame set is available.
	WaitForFrames(ctx context.Context) (*RawFrames, error)
	// NewAligner returns a fresh aligner for this source's streams.
	NewAligner() Aligner
	// Stop releases the device. Calls after the first are no-ops.
	Stop() error
}

// Acquirer pulls aligned frames from a Source and heals transient vertex
// failures. It is used from a single goroutine.
type Acquirer struct {
	src      Source
	aligner  Aligner
	failures int
	dropped  uint64
}

// NewAcquirer wraps src.
func NewAcquirer(src Source) *Acquirer {
	return &Acquirer{src: src, aligner: src.NewAligner()}
}

// Next blocks for the next aligned frame. On a vertex failure it rebuilds
// the aligner, waits for one replacement frame set, discards it, and
// returns ErrFrameDropped. Any other error is returned unchanged.
func (a *Acquirer) Next(ctx context.Context) (*goal.Frame, error) {
	raw, err := a.src.WaitForFrames(ctx)
	if err != nil {
		return nil, err
	}

	f, err := a.aligner.Align(raw)
	if errors.Is(err, ErrVerticesUnavailable) {
		a.failures++
		a.dropped++
		monitoring.Logf("Failed to get vertices for %d frames: %v", a.failures, err)

		a.aligner = a.src.NewAligner()
		if _, err := a.src.WaitForFrames(ctx); err != nil {
			return nil, fmt.Errorf("resync after vertex failure: %w", err)
		}
		return nil, ErrFrameDropped
	}
	if err != nil {
		return nil, err
	}

	a.failures = 0
	return f, nil
}

// Failures returns the number of consecutive vertex failures.
func (a *Acquirer) Failures() int { return a.failures }

// Dropped returns the total number of frames dropped by recovery.
func (a *Acquirer) Dropped() uint64 { return a.dropped }

// Stop stops the underlying source.
func (a *Acquirer) Stop() error { return a.src.Stop() }
