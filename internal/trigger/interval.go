package trigger

import (
	"time"

	"github.com/benbjohnson/clock"
)

// IntervalInput simulates a button that is pressed periodically: the
// line goes high for hold at the start of every interval. It lets the
// simulator exercise full measurement cycles without hardware.
type IntervalInput struct {
	clk      clock.Clock
	every    time.Duration
	hold     time.Duration
	started  time.Time
	disabled bool
}

// NewIntervalInput returns an input that presses for hold once per
// every. A non-positive interval yields a line that is never pressed.
func NewIntervalInput(clk clock.Clock, every, hold time.Duration) *IntervalInput {
	return &IntervalInput{
		clk:      clk,
		every:    every,
		hold:     hold,
		started:  clk.Now(),
		disabled: every <= 0,
	}
}

// Level reports whether the simulated press is currently active.
func (in *IntervalInput) Level() bool {
	if in.disabled {
		return false
	}
	offset := in.clk.Since(in.started) % in.every
	return offset < in.hold
}
