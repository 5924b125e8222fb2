// Package sensor abstracts the photoplethysmography sample source.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	// ErrStall is returned when the sample source never becomes ready
	// within the caller's deadline.
	ErrStall = errors.New("sensor: sample source stalled")
)

// Sample is one paired red/infrared intensity reading captured at a
// single sensor tick. Values are raw ADC counts.
type Sample struct {
	Red uint32
	IR  uint32
}

// Source yields paired samples on demand. Implementations must never
// read ahead: one Ready/ReadSample pair consumes exactly one sample.
type Source interface {
	// Ready reports whether a fresh sample can be read.
	Ready() bool

	// ReadSample reads exactly one sample. Callers must observe Ready
	// first; reading an unready source is implementation-defined.
	ReadSample() (Sample, error)
}

// Await polls src until a sample is ready and reads it. The poll is
// paced by clk so tests can run against a fake source without real
// sleeps. A canceled or expired context aborts with ErrStall.
func Await(ctx context.Context, clk clock.Clock, src Source, poll time.Duration) (Sample, error) {
	for !src.Ready() {
		select {
		case <-ctx.Done():
			return Sample{}, fmt.Errorf("%w: %v", ErrStall, ctx.Err())
		default:
		}
		if poll > 0 {
			clk.Sleep(poll)
		}
	}
	return src.ReadSample()
}
