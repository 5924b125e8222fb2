package alert

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/oxitrack/pulse-monitor/internal/vitals"
)

// fakeOutput records every line transition and tracks current levels.
type fakeOutput struct {
	levels map[Channel]bool
	rises  map[Channel]int
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{
		levels: make(map[Channel]bool),
		rises:  make(map[Channel]int),
	}
}

func (f *fakeOutput) Set(ch Channel, on bool) {
	if on && !f.levels[ch] {
		f.rises[ch]++
	}
	f.levels[ch] = on
}

func newTestController(out Output, mock *clock.Mock) *Controller {
	// Zero pulse durations keep the pulse train instantaneous under
	// the mock clock.
	return NewController(out, mock, 5*time.Second, 0, 0, zap.NewNop())
}

func TestPatternFor(t *testing.T) {
	cases := []struct {
		status vitals.Status
		led    Channel
		pulses int
	}{
		{vitals.StatusCritical, ChannelCritical, 3},
		{vitals.StatusLowHeartRate, ChannelLow, 2},
		{vitals.StatusNormal, ChannelNormal, 1},
	}
	for _, tc := range cases {
		p := PatternFor(tc.status)
		if p.LED != tc.led || p.Pulses != tc.pulses {
			t.Errorf("PatternFor(%v) = %+v, want LED %v pulses %d", tc.status, p, tc.led, tc.pulses)
		}
	}
}

func TestTriggerPulsesAndHolds(t *testing.T) {
	out := newFakeOutput()
	mock := clock.NewMock()
	c := newTestController(out, mock)

	c.Trigger(vitals.StatusCritical)

	// Three pulses plus the final hold is four rising edges on the
	// LED, three on the buzzer.
	if out.rises[ChannelCritical] != 4 {
		t.Errorf("Expected 4 LED rises for critical, got %d", out.rises[ChannelCritical])
	}
	if out.rises[ChannelBuzzer] != 3 {
		t.Errorf("Expected 3 buzzer pulses for critical, got %d", out.rises[ChannelBuzzer])
	}

	if !out.levels[ChannelCritical] {
		t.Error("Expected critical LED held on after pulsing")
	}
	if out.levels[ChannelBuzzer] {
		t.Error("Expected buzzer off after pulsing")
	}
	if !c.Active() {
		t.Error("Expected alert active during hold")
	}
}

func TestServiceClearsAfterHold(t *testing.T) {
	out := newFakeOutput()
	mock := clock.NewMock()
	c := newTestController(out, mock)

	c.Trigger(vitals.StatusLowHeartRate)

	mock.Add(4 * time.Second)
	c.Service()
	if !out.levels[ChannelLow] {
		t.Error("Alert cleared before hold expired")
	}

	mock.Add(time.Second)
	c.Service()
	if out.levels[ChannelLow] {
		t.Error("Alert not cleared after hold expired")
	}
	if c.Active() {
		t.Error("Expected alert inactive after clearing")
	}
}

func TestNewTriggerReplacesHeldAlert(t *testing.T) {
	out := newFakeOutput()
	mock := clock.NewMock()
	c := newTestController(out, mock)

	c.Trigger(vitals.StatusCritical)
	mock.Add(2 * time.Second)
	c.Trigger(vitals.StatusNormal)

	if out.levels[ChannelCritical] {
		t.Error("Expected previous alert LED off after retrigger")
	}
	if !out.levels[ChannelNormal] {
		t.Error("Expected new alert LED on")
	}

	// The hold restarts from the second trigger.
	mock.Add(4 * time.Second)
	c.Service()
	if !out.levels[ChannelNormal] {
		t.Error("Hold did not restart on retrigger")
	}
	mock.Add(time.Second)
	c.Service()
	if out.levels[ChannelNormal] {
		t.Error("Alert not cleared after restarted hold expired")
	}
}

func TestResetForcesAllLinesOff(t *testing.T) {
	out := newFakeOutput()
	mock := clock.NewMock()
	c := newTestController(out, mock)

	c.Trigger(vitals.StatusCritical)
	c.Reset()

	for _, ch := range []Channel{ChannelCritical, ChannelLow, ChannelNormal, ChannelBuzzer} {
		if out.levels[ch] {
			t.Errorf("Expected %s off after reset", ch)
		}
	}
	if c.Active() {
		t.Error("Expected alert inactive after reset")
	}
}
