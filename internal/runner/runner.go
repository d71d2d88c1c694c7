// Package runner drives the acquire, estimate, publish, receive loop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/goal-distance/internal/frames"
	"github.com/banshee-data/goal-distance/internal/goal"
	"github.com/banshee-data/goal-distance/internal/hub"
	"github.com/banshee-data/goal-distance/internal/monitoring"
	"github.com/banshee-data/goal-distance/internal/timeutil"
)

// FrameSource yields aligned frames. *frames.Acquirer implements it.
type FrameSource interface {
	Next(ctx context.Context) (*goal.Frame, error)
	Failures() int
	Stop() error
}

// Estimator turns a frame into an estimate. *goal.Estimator implements it.
type Estimator interface {
	Estimate(f *goal.Frame) (goal.Estimate, error)
}

// Hub publishes results and paces the loop. *hub.Session implements it.
type Hub interface {
	PublishGoal(distance float64, angle *float64) error
	Receive(ctx context.Context) (hub.LoopControl, error)
	Close() error
}

// Recorder persists published estimates. *goaldb.DB implements it.
type Recorder interface {
	RecordEstimate(runID string, seq uint64, e goal.Estimate) error
}

// Config holds the optional loop settings.
type Config struct {
	// StatsInterval between LogStats calls; zero disables periodic stats.
	StatsInterval time.Duration
	// Units for distances in log output.
	Units string
	Clock timeutil.Clock

	Recorder Recorder
	RunID    string
}

// Runner owns the frame source and the hub session for one process run.
type Runner struct {
	src   FrameSource
	est   Estimator
	hub   Hub
	cfg   Config
	stats *Stats

	cleanupOnce sync.Once
	cleanupErr  error
}

// New builds a Runner. The runner takes ownership of src and h: both are
// released when Run returns.
func New(src FrameSource, est Estimator, h Hub, cfg Config) *Runner {
	return &Runner{
		src:   src,
		est:   est,
		hub:   h,
		cfg:   cfg,
		stats: NewStats(cfg.Clock),
	}
}

// Stats returns the runner's counters.
func (r *Runner) Stats() *Stats { return r.stats }

// Run loops until the hub sends the close topic, the frame source ends,
// ctx is cancelled or an unexpected error occurs. Cleanup runs exactly
// once on every path. A close message or an exhausted source returns nil;
// cancellation returns ctx.Err().
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := r.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctrl, err := r.step(ctx)
		if err != nil {
			return err
		}
		if r.stats.Due(r.cfg.StatsInterval) {
			r.stats.LogStats(r.cfg.Units)
		}
		if ctrl == hub.LoopStop {
			monitoring.Logf("close requested by hub; stopping")
			return nil
		}
	}
}

// step runs one iteration. A skipped frame returns LoopContinue without
// publishing or receiving.
func (r *Runner) step(ctx context.Context) (hub.LoopControl, error) {
	f, err := r.src.Next(ctx)
	switch {
	case errors.Is(err, frames.ErrFrameDropped):
		r.stats.addDropped(r.src.Failures())
		return hub.LoopContinue, nil
	case errors.Is(err, io.EOF):
		monitoring.Logf("frame source exhausted")
		return hub.LoopStop, nil
	case err != nil:
		if ctx.Err() != nil {
			return hub.LoopStop, ctx.Err()
		}
		return hub.LoopStop, fmt.Errorf("acquire frame: %w", err)
	}
	r.stats.addFrame()

	est, err := r.est.Estimate(f)
	switch {
	case errors.Is(err, goal.ErrInvalidFrame), errors.Is(err, goal.ErrZeroDistance):
		r.stats.addSkipped()
		monitoring.Debugf("frame %d skipped: %v", f.Seq, err)
		return hub.LoopContinue, nil
	case err != nil:
		return hub.LoopStop, fmt.Errorf("estimate frame %d: %w", f.Seq, err)
	}

	if err := r.hub.PublishGoal(est.Distance, est.Angle); err != nil {
		return hub.LoopStop, fmt.Errorf("publish frame %d: %w", f.Seq, err)
	}
	r.stats.addPublished(est.Distance, est.Angle)
	monitoring.Debugf("frame %d: distance %.3f angle %v (%d/%d inliers)", f.Seq, est.Distance, fmtAngle(est.Angle), est.Inliers, est.Samples)

	if r.cfg.Recorder != nil {
		if err := r.cfg.Recorder.RecordEstimate(r.cfg.RunID, f.Seq, est); err != nil {
			r.stats.addRecordErr()
			monitoring.Logf("record frame %d: %v", f.Seq, err)
		}
	}

	ctrl, err := r.hub.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return hub.LoopStop, ctx.Err()
		}
		return hub.LoopStop, fmt.Errorf("receive: %w", err)
	}
	return ctrl, nil
}

// Close releases the hub session and the frame source. Only the first
// call has any effect.
func (r *Runner) Close() error {
	r.cleanupOnce.Do(func() {
		var errs []error
		if err := r.hub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close hub session: %w", err))
		}
		if err := r.src.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop frame source: %w", err))
		}
		r.cleanupErr = errors.Join(errs...)
		if r.cfg.StatsInterval > 0 {
			r.stats.LogStats(r.cfg.Units)
		}
	})
	return r.cleanupErr
}

func fmtAngle(a *float64) string {
	if a == nil {
		return "null"
	}
	return fmt.Sprintf("%.2f", *a)
}
