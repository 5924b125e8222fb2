// Package trigger turns a raw button line into debounced
// start-measurement edges.
package trigger

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Input is a sampled digital line. Level reports the instantaneous
// state, true for pressed.
type Input interface {
	Level() bool
}

// Debouncer filters contact bounce out of a polled input line. A level
// change only takes effect once the line has held the new level for a
// full stability window, and only low-to-high transitions are reported
// as presses.
type Debouncer struct {
	clk    clock.Clock
	window time.Duration

	stable     bool
	pending    bool
	hasPending bool
	pendingAt  time.Time
}

// NewDebouncer returns a debouncer requiring the line to hold steady
// for window before a transition registers. A window of zero or less
// disables filtering and every raw rising edge registers immediately.
func NewDebouncer(clk clock.Clock, window time.Duration) *Debouncer {
	return &Debouncer{clk: clk, window: window}
}

// Process feeds one poll of the raw line and reports whether a
// debounced press (stable low-to-high transition) occurred on this
// poll.
func (d *Debouncer) Process(level bool) bool {
	if d.window <= 0 {
		pressed := level && !d.stable
		d.stable = level
		return pressed
	}

	if level == d.stable {
		// Bounce back to the stable level cancels the pending change.
		d.hasPending = false
		return false
	}

	now := d.clk.Now()
	if !d.hasPending || level != d.pending {
		d.pending = level
		d.pendingAt = now
		d.hasPending = true
		return false
	}

	if now.Sub(d.pendingAt) < d.window {
		return false
	}

	d.stable = level
	d.hasPending = false
	return level
}
