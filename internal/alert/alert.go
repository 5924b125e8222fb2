// Package alert drives the local LED and buzzer annunciators.
package alert

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/oxitrack/pulse-monitor/internal/vitals"
)

// Channel identifies one physical annunciator line.
type Channel int

const (
	ChannelCritical Channel = iota
	ChannelLow
	ChannelNormal
	ChannelBuzzer
)

func (c Channel) String() string {
	switch c {
	case ChannelCritical:
		return "critical_led"
	case ChannelLow:
		return "low_led"
	case ChannelNormal:
		return "normal_led"
	case ChannelBuzzer:
		return "buzzer"
	default:
		return "unknown"
	}
}

// Output switches annunciator lines on and off.
type Output interface {
	Set(ch Channel, on bool)
}

// Pattern is the annunciation for one status: which LED and how many
// pulses.
type Pattern struct {
	LED    Channel
	Pulses int
}

// PatternFor maps a status to its annunciation. Severity is encoded in
// the pulse count.
func PatternFor(status vitals.Status) Pattern {
	switch status {
	case vitals.StatusCritical:
		return Pattern{LED: ChannelCritical, Pulses: 3}
	case vitals.StatusLowHeartRate:
		return Pattern{LED: ChannelLow, Pulses: 2}
	default:
		return Pattern{LED: ChannelNormal, Pulses: 1}
	}
}

// Controller runs the annunciators. A trigger pulses the status LED
// and buzzer together, then leaves the LED lit; Service clears it once
// the hold period expires. The hold timer runs on the controller's
// clock, independent of any measurement activity that may be going on.
type Controller struct {
	out    Output
	clk    clock.Clock
	logger *zap.Logger

	hold     time.Duration
	pulseOn  time.Duration
	pulseOff time.Duration

	mu          sync.Mutex
	active      bool
	current     Pattern
	activatedAt time.Time
}

// NewController returns a controller that holds an alert for hold
// after its pulse train finishes pulsing.
func NewController(out Output, clk clock.Clock, hold, pulseOn, pulseOff time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		out:      out,
		clk:      clk,
		logger:   logger,
		hold:     hold,
		pulseOn:  pulseOn,
		pulseOff: pulseOff,
	}
}

// Reset forces every line off. Called once at startup so a crashed
// previous run cannot leave an LED latched.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allOff()
	c.active = false
}

// Trigger annunciates the given status: the matching LED and the
// buzzer pulse together, then the LED stays lit until the hold
// expires. A new trigger replaces any alert still holding.
func (c *Controller) Trigger(status vitals.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.allOff()

	p := PatternFor(status)
	c.logger.Info("alert triggered",
		zap.String("status", status.String()),
		zap.String("led", p.LED.String()),
		zap.Int("pulses", p.Pulses))

	for i := 0; i < p.Pulses; i++ {
		c.out.Set(p.LED, true)
		c.out.Set(ChannelBuzzer, true)
		c.sleep(c.pulseOn)
		c.out.Set(p.LED, false)
		c.out.Set(ChannelBuzzer, false)
		if i < p.Pulses-1 {
			c.sleep(c.pulseOff)
		}
	}

	c.out.Set(p.LED, true)
	c.current = p
	c.active = true
	c.activatedAt = c.clk.Now()
}

// Service clears an expired alert. It is cheap and meant to be called
// on every control-loop tick.
func (c *Controller) Service() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	if c.clk.Since(c.activatedAt) < c.hold {
		return
	}

	c.out.Set(c.current.LED, false)
	c.active = false
	c.logger.Info("alert cleared", zap.String("led", c.current.LED.String()))
}

// Active reports whether an alert is currently holding.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) allOff() {
	c.out.Set(ChannelCritical, false)
	c.out.Set(ChannelLow, false)
	c.out.Set(ChannelNormal, false)
	c.out.Set(ChannelBuzzer, false)
}

func (c *Controller) sleep(d time.Duration) {
	if d > 0 {
		c.clk.Sleep(d)
	}
}
