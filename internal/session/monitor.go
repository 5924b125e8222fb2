// Package session runs the measurement lifecycle: an idle monitor
// waits for the trigger, acquires a rolling window of samples for the
// measurement period, then reports and notifies before returning to
// idle.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oxitrack/pulse-monitor/internal/alert"
	"github.com/oxitrack/pulse-monitor/internal/display"
	"github.com/oxitrack/pulse-monitor/internal/notify"
	"github.com/oxitrack/pulse-monitor/internal/sensor"
	"github.com/oxitrack/pulse-monitor/internal/telemetry"
	"github.com/oxitrack/pulse-monitor/internal/trigger"
	"github.com/oxitrack/pulse-monitor/internal/vitals"
	"github.com/oxitrack/pulse-monitor/internal/window"
)

// State is the monitor's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateMeasuring
	StateReporting
	StateNotifying
)

func (s State) String() string {
	switch s {
	case StateMeasuring:
		return "measuring"
	case StateReporting:
		return "reporting"
	case StateNotifying:
		return "notifying"
	default:
		return "idle"
	}
}

// Estimator turns one window of paired channels into an estimate.
type Estimator interface {
	Estimate(red, ir []uint32) vitals.Estimate
}

// Store persists completed measurements. Optional; persistence
// failures never fail the session.
type Store interface {
	SaveMeasurement(ctx context.Context, r *Result) error
}

// Notifier delivers the final report to remote carers. Optional.
type Notifier interface {
	Dispatch(ctx context.Context, r notify.Report) error
}

// Broadcaster pushes live updates to connected dashboards. Optional.
type Broadcaster interface {
	Broadcast(v interface{})
}

// Result is the outcome of one completed measurement session.
type Result struct {
	ID          uuid.UUID       `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Estimate    vitals.Estimate `json:"estimate"`
	Status      vitals.Status   `json:"-"`
	StatusText  string          `json:"status"`
	Condition   string          `json:"condition"`
	Slides      int             `json:"slides"`
}

// Stats counts session outcomes since startup.
type Stats struct {
	Sessions       int `json:"sessions"`
	Failed         int `json:"failed"`
	NotifyFailures int `json:"notify_failures"`
}

// LiveUpdate is the per-window message broadcast to dashboards during
// a measurement.
type LiveUpdate struct {
	State          string `json:"state"`
	HeartRate      int    `json:"heart_rate"`
	HeartRateValid bool   `json:"heart_rate_valid"`
	SpO2           int    `json:"spo2"`
	SpO2Valid      bool   `json:"spo2_valid"`
	Slide          int    `json:"slide"`
}

// Params are the timing and sizing knobs of the lifecycle.
type Params struct {
	WindowSize          int
	SlideStep           int
	SensorPoll          time.Duration
	SensorReadTimeout   time.Duration
	MeasurementDuration time.Duration
	LoopTick            time.Duration
	IdlePromptAfter     time.Duration
	DebounceWindow      time.Duration
}

// Deps are the collaborators the monitor drives. Store, Notifier and
// Broadcaster may be nil; Publisher may be nil for no telemetry.
type Deps struct {
	Source      sensor.Source
	Trigger     trigger.Input
	Display     display.Adapter
	Alerts      *alert.Controller
	Estimator   Estimator
	Classifier  *vitals.Classifier
	Publisher   telemetry.Publisher
	Broadcaster Broadcaster
	Store       Store
	Notifier    Notifier
	Clock       clock.Clock
	Logger      *zap.Logger
}

// Monitor owns the lifecycle state machine. All phase transitions
// happen on the control loop goroutine; accessors are safe from other
// goroutines.
type Monitor struct {
	params Params

	source      sensor.Source
	trig        trigger.Input
	debounce    *trigger.Debouncer
	disp        display.Adapter
	alerts      *alert.Controller
	estimator   Estimator
	classifier  *vitals.Classifier
	publisher   telemetry.Publisher
	broadcaster Broadcaster
	store       Store
	notifier    Notifier
	clk         clock.Clock
	logger      *zap.Logger

	mu    sync.RWMutex
	state State
	stats Stats
	last  *Result

	idleSince       time.Time
	idlePromptShown bool
}

// New wires a monitor. The debouncer is created on the monitor's
// clock so tests can drive it deterministically.
func New(params Params, deps Deps) *Monitor {
	pub := deps.Publisher
	if pub == nil {
		pub = telemetry.NopPublisher{}
	}
	return &Monitor{
		params:      params,
		source:      deps.Source,
		trig:        deps.Trigger,
		debounce:    trigger.NewDebouncer(deps.Clock, params.DebounceWindow),
		disp:        deps.Display,
		alerts:      deps.Alerts,
		estimator:   deps.Estimator,
		classifier:  deps.Classifier,
		publisher:   pub,
		broadcaster: deps.Broadcaster,
		store:       deps.Store,
		notifier:    deps.Notifier,
		clk:         deps.Clock,
		logger:      deps.Logger,
		idleSince:   deps.Clock.Now(),
	}
}

// Run drives the control loop until the context ends. It polls the
// trigger, services the alert hold and the idle prompt, and runs full
// sessions inline when a debounced press arrives.
func (m *Monitor) Run(ctx context.Context) error {
	m.alerts.Reset()
	m.disp.Clear()
	m.disp.WriteRow(display.RowStatus, "Pulse monitor ready")
	m.logger.Info("monitor started")
	m.markIdle()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m.tick(ctx)
		m.clk.Sleep(m.params.LoopTick)
	}
}

// tick is one pass of the control loop.
func (m *Monitor) tick(ctx context.Context) {
	m.alerts.Service()
	m.serviceIdlePrompt()

	if m.debounce.Process(m.trig.Level()) {
		m.runSession(ctx)
	}
}

// serviceIdlePrompt shows the placement prompt once per idle period.
func (m *Monitor) serviceIdlePrompt() {
	if m.params.IdlePromptAfter <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle || m.idlePromptShown {
		return
	}
	if m.clk.Since(m.idleSince) < m.params.IdlePromptAfter {
		return
	}

	m.idlePromptShown = true
	m.disp.WriteRow(display.RowStatus, "Place finger on sensor")
}

// runSession executes one full measurement lifecycle synchronously.
// Trigger presses during the session are invisible: the line is not
// polled again until the monitor is back in idle.
func (m *Monitor) runSession(ctx context.Context) {
	id := uuid.New()
	started := m.clk.Now()

	m.setState(StateMeasuring)
	m.disp.Clear()
	m.disp.WriteRow(display.RowStatus, "Measuring...")
	m.logger.Info("measurement started", zap.String("id", id.String()))

	est, slides, err := m.measure(ctx)
	if err != nil {
		m.logger.Error("measurement failed",
			zap.String("id", id.String()),
			zap.Int("slides", slides),
			zap.Error(err))
		m.disp.WriteRow(display.RowStatus, "Measurement failed")

		m.mu.Lock()
		m.stats.Sessions++
		m.stats.Failed++
		m.mu.Unlock()

		m.markIdle()
		return
	}

	result := &Result{
		ID:          id,
		StartedAt:   started,
		CompletedAt: m.clk.Now(),
		Estimate:    est,
		Status:      m.classifier.Classify(est),
		Condition:   m.classifier.Condition(est),
		Slides:      slides,
	}
	result.StatusText = result.Status.String()

	m.setState(StateReporting)
	m.report(ctx, result)

	m.setState(StateNotifying)
	m.notify(ctx, result)

	m.mu.Lock()
	m.stats.Sessions++
	m.last = result
	m.mu.Unlock()

	m.logger.Info("measurement completed",
		zap.String("id", id.String()),
		zap.String("status", result.StatusText),
		zap.String("condition", result.Condition),
		zap.Int("slides", slides))

	m.markIdle()
}

// measure fills a fresh window, then keeps sliding and re-estimating
// until the measurement period elapses. The last estimate wins. Every
// blocking read is bounded so a stalled sensor aborts the session
// instead of wedging it.
func (m *Monitor) measure(ctx context.Context) (vitals.Estimate, int, error) {
	w := window.New(m.clk, m.params.WindowSize, m.params.SensorPoll)
	started := m.clk.Now()

	if err := m.boundedRead(ctx, func(opCtx context.Context) error {
		return w.Fill(opCtx, m.source)
	}); err != nil {
		return vitals.Estimate{}, 0, err
	}

	est := m.estimator.Estimate(w.Red(), w.IR())
	slides := 0
	m.publishLive(est, slides)

	for m.clk.Since(started) < m.params.MeasurementDuration {
		if err := m.boundedRead(ctx, func(opCtx context.Context) error {
			return w.Slide(opCtx, m.source, m.params.SlideStep)
		}); err != nil {
			return vitals.Estimate{}, slides, err
		}
		slides++

		est = m.estimator.Estimate(w.Red(), w.IR())
		m.publishLive(est, slides)
	}

	return est, slides, nil
}

func (m *Monitor) boundedRead(ctx context.Context, read func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, m.params.SensorReadTimeout)
	defer cancel()
	return read(opCtx)
}

// publishLive pushes one window's estimate to the display, telemetry
// and dashboards. Invalid metrics publish as zero so remote consumers
// see the gap.
func (m *Monitor) publishLive(est vitals.Estimate, slide int) {
	hrText, spo2Text := "--", "--"
	var hr, spo2 float64
	if est.HeartRateValid {
		hrText = strconv.Itoa(est.HeartRate)
		hr = float64(est.HeartRate)
	}
	if est.SpO2Valid {
		spo2Text = strconv.Itoa(est.SpO2) + "%"
		spo2 = float64(est.SpO2)
	}
	m.disp.WriteRow(display.RowVitals, fmt.Sprintf("HR %s  SpO2 %s", hrText, spo2Text))

	if err := m.publisher.Publish(telemetry.ChannelHeartRate, hr); err != nil {
		m.logger.Warn("heart rate publish failed", zap.Error(err))
	}
	if err := m.publisher.Publish(telemetry.ChannelSpO2, spo2); err != nil {
		m.logger.Warn("spo2 publish failed", zap.Error(err))
	}

	if m.broadcaster != nil {
		m.broadcaster.Broadcast(LiveUpdate{
			State:          StateMeasuring.String(),
			HeartRate:      est.HeartRate,
			HeartRateValid: est.HeartRateValid,
			SpO2:           est.SpO2,
			SpO2Valid:      est.SpO2Valid,
			Slide:          slide,
		})
	}
}

// report renders the final result locally and persists it.
func (m *Monitor) report(ctx context.Context, r *Result) {
	hrText, spo2Text := "--", "--"
	if r.Estimate.HeartRateValid {
		hrText = strconv.Itoa(r.Estimate.HeartRate)
	}
	if r.Estimate.SpO2Valid {
		spo2Text = strconv.Itoa(r.Estimate.SpO2) + "%"
	}
	m.disp.WriteRow(display.RowStatus, "Result: "+r.Condition)
	m.disp.WriteRow(display.RowVitals, fmt.Sprintf("HR %s  SpO2 %s", hrText, spo2Text))

	if m.broadcaster != nil {
		m.broadcaster.Broadcast(r)
	}

	if m.store != nil {
		if err := m.store.SaveMeasurement(ctx, r); err != nil {
			m.logger.Error("failed to persist measurement",
				zap.String("id", r.ID.String()),
				zap.Error(err))
		}
	}
}

// notify annunciates locally and dispatches the remote report.
// Delivery failures are surfaced on the display and counted but never
// keep the monitor out of idle.
func (m *Monitor) notify(ctx context.Context, r *Result) {
	m.alerts.Trigger(r.Status)

	if m.notifier == nil {
		return
	}

	rep := notify.Report{
		Estimate:  r.Estimate,
		Status:    r.Status,
		Condition: r.Condition,
	}
	if err := m.notifier.Dispatch(ctx, rep); err != nil {
		m.logger.Warn("notification delivery failed", zap.Error(err))
		m.disp.WriteRow(display.RowStatus, "Notification failed")

		m.mu.Lock()
		m.stats.NotifyFailures++
		m.mu.Unlock()
	}
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// markIdle returns to idle and restarts the idle prompt period.
func (m *Monitor) markIdle() {
	m.mu.Lock()
	m.state = StateIdle
	m.idleSince = m.clk.Now()
	m.idlePromptShown = false
	m.mu.Unlock()
}

// State reports the current lifecycle phase.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats reports session counters since startup.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// LastResult returns the most recent completed measurement, or nil.
func (m *Monitor) LastResult() *Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil
	}
	out := *m.last
	return &out
}
