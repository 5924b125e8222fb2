// Package window implements the fixed-capacity rolling sample buffer
// the estimator runs over.
package window

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/oxitrack/pulse-monitor/internal/sensor"
)

// Window holds exactly N paired samples in insertion (time) order once
// filled. A slide evicts the oldest samples, compacts the remainder to
// the front and refills the tail, so the length is invariant across
// every Slide call.
type Window struct {
	clk     clock.Clock
	poll    time.Duration
	samples []sensor.Sample
	filled  bool
}

// New returns an empty window of the given size. poll paces the
// readiness polling during blocking reads.
func New(clk clock.Clock, size int, poll time.Duration) *Window {
	return &Window{
		clk:     clk,
		poll:    poll,
		samples: make([]sensor.Sample, 0, size),
	}
}

// Fill performs the one-time initial population: a blocking bulk read
// of the full window size. The context bounds the total wait so a
// stalled sensor aborts instead of hanging the control loop.
func (w *Window) Fill(ctx context.Context, src sensor.Source) error {
	w.samples = w.samples[:0]
	w.filled = false

	for len(w.samples) < cap(w.samples) {
		s, err := sensor.Await(ctx, w.clk, src, w.poll)
		if err != nil {
			return fmt.Errorf("window: fill at %d/%d: %w", len(w.samples), cap(w.samples), err)
		}
		w.samples = append(w.samples, s)
	}

	w.filled = true
	return nil
}

// Slide discards the step oldest samples, compacts the remainder to
// the front and blocking-reads step fresh samples into the tail.
// Eviction and refill counts are equal, so Len is unchanged.
func (w *Window) Slide(ctx context.Context, src sensor.Source, step int) error {
	if !w.filled {
		return fmt.Errorf("window: slide before initial fill")
	}
	if step <= 0 || step > len(w.samples) {
		return fmt.Errorf("window: invalid slide step %d for window of %d", step, len(w.samples))
	}

	keep := len(w.samples) - step
	copy(w.samples, w.samples[step:])
	w.samples = w.samples[:keep]

	for len(w.samples) < cap(w.samples) {
		s, err := sensor.Await(ctx, w.clk, src, w.poll)
		if err != nil {
			// A failed refill leaves the window partially valid; it
			// must be refilled before the next estimate.
			w.filled = false
			return fmt.Errorf("window: refill at %d/%d: %w", len(w.samples), cap(w.samples), err)
		}
		w.samples = append(w.samples, s)
	}

	return nil
}

// Len returns the number of samples currently held.
func (w *Window) Len() int { return len(w.samples) }

// Red returns the red channel in time order, oldest first.
func (w *Window) Red() []uint32 {
	out := make([]uint32, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Red
	}
	return out
}

// IR returns the infrared channel in time order, oldest first.
func (w *Window) IR() []uint32 {
	out := make([]uint32, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.IR
	}
	return out
}
