package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/oxitrack/pulse-monitor/internal/alert"
	"github.com/oxitrack/pulse-monitor/internal/notify"
	"github.com/oxitrack/pulse-monitor/internal/sensor"
	"github.com/oxitrack/pulse-monitor/internal/vitals"
)

// pacedSource is always ready and advances the mock clock by one
// sample period per read, so the measurement budget elapses as the
// window fills and slides.
type pacedSource struct {
	mock *clock.Mock
	step time.Duration
}

func (s *pacedSource) Ready() bool { return true }

func (s *pacedSource) ReadSample() (sensor.Sample, error) {
	s.mock.Add(s.step)
	return sensor.Sample{Red: 80000, IR: 100000}, nil
}

// stalledSource never produces a sample.
type stalledSource struct{}

func (stalledSource) Ready() bool                        { return false }
func (stalledSource) ReadSample() (sensor.Sample, error) { return sensor.Sample{}, nil }

// lineInput is a trigger line the test sets directly.
type lineInput struct {
	level bool
}

func (l *lineInput) Level() bool { return l.level }

// fixedEstimator returns the same estimate for every window.
type fixedEstimator struct {
	est vitals.Estimate
}

func (f *fixedEstimator) Estimate(_, _ []uint32) vitals.Estimate { return f.est }

// recordingDisplay captures every row write.
type recordingDisplay struct {
	writes []string
}

func (d *recordingDisplay) Clear() {}

func (d *recordingDisplay) WriteRow(_ int, text string) {
	d.writes = append(d.writes, text)
}

func (d *recordingDisplay) count(text string) int {
	n := 0
	for _, w := range d.writes {
		if w == text {
			n++
		}
	}
	return n
}

func (d *recordingDisplay) contains(text string) bool { return d.count(text) > 0 }

// recordingOutput tracks annunciator lines.
type recordingOutput struct {
	levels map[alert.Channel]bool
	rises  map[alert.Channel]int
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{
		levels: make(map[alert.Channel]bool),
		rises:  make(map[alert.Channel]int),
	}
}

func (r *recordingOutput) Set(ch alert.Channel, on bool) {
	if on && !r.levels[ch] {
		r.rises[ch]++
	}
	r.levels[ch] = on
}

// recordingTransport captures SMS bodies.
type recordingTransport struct {
	bodies []string
}

func (r *recordingTransport) Send(_ context.Context, _, body string) error {
	r.bodies = append(r.bodies, body)
	return nil
}

// recordingPublisher captures live metric publishes and reports.
type recordingPublisher struct {
	values  map[string][]float64
	reports []string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{values: make(map[string][]float64)}
}

func (r *recordingPublisher) Publish(channel string, value float64) error {
	r.values[channel] = append(r.values[channel], value)
	return nil
}

func (r *recordingPublisher) PublishReport(body string) error {
	r.reports = append(r.reports, body)
	return nil
}

func (r *recordingPublisher) Close() {}

// failingNotifier always fails delivery.
type failingNotifier struct{}

func (failingNotifier) Dispatch(context.Context, notify.Report) error {
	return errors.New("gateway unreachable")
}

type fixture struct {
	mock     *clock.Mock
	line     *lineInput
	disp     *recordingDisplay
	out      *recordingOutput
	sms      *recordingTransport
	pub      *recordingPublisher
	alerts   *alert.Controller
	monitor  *Monitor
	notifier Notifier
}

func defaultParams() Params {
	return Params{
		WindowSize:          100,
		SlideStep:           25,
		SensorPoll:          0,
		SensorReadTimeout:   time.Second,
		MeasurementDuration: 15 * time.Second,
		LoopTick:            20 * time.Millisecond,
		IdlePromptAfter:     30 * time.Second,
		DebounceWindow:      0,
	}
}

func newFixture(t *testing.T, params Params, src sensor.Source, est Estimator) *fixture {
	t.Helper()

	f := &fixture{
		mock: clock.NewMock(),
		line: &lineInput{},
		disp: &recordingDisplay{},
		out:  newRecordingOutput(),
		sms:  &recordingTransport{},
		pub:  newRecordingPublisher(),
	}
	if src == nil {
		src = &pacedSource{mock: f.mock, step: 40 * time.Millisecond}
	}

	f.alerts = alert.NewController(f.out, f.mock, 5*time.Second, 0, 0, zap.NewNop())
	f.notifier = notify.NewDispatcher(f.sms, "+15551234567", f.pub, zap.NewNop())

	f.monitor = New(params, Deps{
		Source:     src,
		Trigger:    f.line,
		Display:    f.disp,
		Alerts:     f.alerts,
		Estimator:  est,
		Classifier: vitals.NewClassifier(vitals.Thresholds{HighHeartRate: 100, LowHeartRate: 60, LowSpO2: 95}),
		Publisher:  f.pub,
		Notifier:   f.notifier,
		Clock:      f.mock,
		Logger:     zap.NewNop(),
	})
	return f
}

func criticalEstimator() Estimator {
	return &fixedEstimator{est: vitals.Estimate{
		HeartRate:      110,
		HeartRateValid: true,
		SpO2:           90,
		SpO2Valid:      true,
	}}
}

func TestFullCriticalSession(t *testing.T) {
	f := newFixture(t, defaultParams(), nil, criticalEstimator())

	f.line.level = true
	f.monitor.tick(context.Background())

	if got := f.monitor.State(); got != StateIdle {
		t.Errorf("Expected idle after session, got %v", got)
	}
	stats := f.monitor.Stats()
	if stats.Sessions != 1 || stats.Failed != 0 || stats.NotifyFailures != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	// The window fills in 4s, then slides once per second until the
	// 15s budget elapses.
	last := f.monitor.LastResult()
	if last == nil {
		t.Fatal("Expected a completed result")
	}
	if last.Slides != 11 {
		t.Errorf("Expected 11 slides, got %d", last.Slides)
	}
	if last.Status != vitals.StatusCritical {
		t.Errorf("Expected critical status, got %v", last.Status)
	}
	if last.Condition != "High BPM, Low SPO2" {
		t.Errorf("Unexpected condition %q", last.Condition)
	}

	// Critical annunciation: three buzzer pulses, LED held on.
	if f.out.rises[alert.ChannelBuzzer] != 3 {
		t.Errorf("Expected 3 buzzer pulses, got %d", f.out.rises[alert.ChannelBuzzer])
	}
	if !f.out.levels[alert.ChannelCritical] {
		t.Error("Expected critical LED held on after session")
	}

	// Remote report over SMS and telemetry.
	if len(f.sms.bodies) != 1 {
		t.Fatalf("Expected 1 SMS, got %d", len(f.sms.bodies))
	}
	for _, want := range []string{"Heart Rate: 110 BPM", "SPO2: 90%", "Condition: High BPM, Low SPO2"} {
		if !strings.Contains(f.sms.bodies[0], want) {
			t.Errorf("SMS missing %q:\n%s", want, f.sms.bodies[0])
		}
	}
	if len(f.pub.reports) != 1 {
		t.Errorf("Expected 1 telemetry report, got %d", len(f.pub.reports))
	}

	// Live values published once per estimate: initial fill plus 11
	// slides.
	if got := len(f.pub.values["heart_rate"]); got != 12 {
		t.Errorf("Expected 12 live heart rate publishes, got %d", got)
	}

	if !f.disp.contains("Result: High BPM, Low SPO2") {
		t.Errorf("Display missing final result, writes: %v", f.disp.writes)
	}

	// The alert hold clears on its own clock after the session.
	f.line.level = false
	f.mock.Add(5 * time.Second)
	f.monitor.tick(context.Background())
	if f.out.levels[alert.ChannelCritical] {
		t.Error("Expected alert cleared after hold expired")
	}
}

func TestHeldTriggerDoesNotRetrigger(t *testing.T) {
	f := newFixture(t, defaultParams(), nil, criticalEstimator())

	f.line.level = true
	f.monitor.tick(context.Background())
	if got := f.monitor.Stats().Sessions; got != 1 {
		t.Fatalf("Expected 1 session, got %d", got)
	}

	// The line was held high through the whole measurement; further
	// ticks must not start another session.
	f.monitor.tick(context.Background())
	f.monitor.tick(context.Background())
	if got := f.monitor.Stats().Sessions; got != 1 {
		t.Errorf("Held trigger retriggered: %d sessions", got)
	}

	// Release and press again starts a new session.
	f.line.level = false
	f.monitor.tick(context.Background())
	f.line.level = true
	f.monitor.tick(context.Background())
	if got := f.monitor.Stats().Sessions; got != 2 {
		t.Errorf("Expected 2 sessions after re-press, got %d", got)
	}
}

func TestIdlePromptShownOncePerIdlePeriod(t *testing.T) {
	f := newFixture(t, defaultParams(), nil, criticalEstimator())

	const prompt = "Place finger on sensor"

	f.monitor.markIdle()
	f.monitor.tick(context.Background())
	if f.disp.contains(prompt) {
		t.Error("Prompt shown before idle period elapsed")
	}

	f.mock.Add(30 * time.Second)
	f.monitor.tick(context.Background())
	if f.disp.count(prompt) != 1 {
		t.Fatalf("Expected prompt shown once, got %d", f.disp.count(prompt))
	}

	// Staying idle longer must not repeat the prompt.
	f.mock.Add(time.Minute)
	f.monitor.tick(context.Background())
	if f.disp.count(prompt) != 1 {
		t.Errorf("Prompt repeated within one idle period: %d", f.disp.count(prompt))
	}

	// A completed session starts a fresh idle period with a fresh
	// prompt.
	f.line.level = true
	f.monitor.tick(context.Background())
	f.line.level = false
	f.mock.Add(30 * time.Second)
	f.monitor.tick(context.Background())
	if f.disp.count(prompt) != 2 {
		t.Errorf("Expected prompt once per idle period, got %d", f.disp.count(prompt))
	}
}

func TestStalledSensorAbortsSession(t *testing.T) {
	params := defaultParams()
	params.SensorReadTimeout = 5 * time.Millisecond

	f := newFixture(t, params, stalledSource{}, criticalEstimator())

	f.line.level = true
	f.monitor.tick(context.Background())

	if got := f.monitor.State(); got != StateIdle {
		t.Errorf("Expected idle after aborted session, got %v", got)
	}
	stats := f.monitor.Stats()
	if stats.Sessions != 1 || stats.Failed != 1 {
		t.Errorf("Expected 1 failed session, got %+v", stats)
	}
	if !f.disp.contains("Measurement failed") {
		t.Errorf("Display missing failure message, writes: %v", f.disp.writes)
	}
	if f.monitor.LastResult() != nil {
		t.Error("Failed session must not record a result")
	}
	if len(f.sms.bodies) != 0 {
		t.Error("Failed session must not notify")
	}
}

func TestNotifyFailureStillReturnsToIdle(t *testing.T) {
	f := newFixture(t, defaultParams(), nil, criticalEstimator())
	f.monitor.notifier = failingNotifier{}

	f.line.level = true
	f.monitor.tick(context.Background())

	if got := f.monitor.State(); got != StateIdle {
		t.Errorf("Expected idle after notify failure, got %v", got)
	}
	stats := f.monitor.Stats()
	if stats.Sessions != 1 || stats.Failed != 0 || stats.NotifyFailures != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if !f.disp.contains("Notification failed") {
		t.Errorf("Display missing notify failure, writes: %v", f.disp.writes)
	}

	// Local annunciation still fired.
	if !f.out.levels[alert.ChannelCritical] {
		t.Error("Expected local alert despite notify failure")
	}
}

func TestNormalSessionSinglePulse(t *testing.T) {
	est := &fixedEstimator{est: vitals.Estimate{
		HeartRate:      72,
		HeartRateValid: true,
		SpO2:           98,
		SpO2Valid:      true,
	}}
	f := newFixture(t, defaultParams(), nil, est)

	f.line.level = true
	f.monitor.tick(context.Background())

	last := f.monitor.LastResult()
	if last == nil || last.Status != vitals.StatusNormal {
		t.Fatalf("Expected normal result, got %+v", last)
	}
	if f.out.rises[alert.ChannelBuzzer] != 1 {
		t.Errorf("Expected 1 buzzer pulse for normal, got %d", f.out.rises[alert.ChannelBuzzer])
	}
	if !f.out.levels[alert.ChannelNormal] {
		t.Error("Expected normal LED held on")
	}
	if strings.Contains(f.sms.bodies[0], "Condition: Normal") == false {
		t.Errorf("Expected normal condition in report:\n%s", f.sms.bodies[0])
	}
}
