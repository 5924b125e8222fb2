package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/oxitrack/pulse-monitor/internal/vitals"
)

// recordingTransport captures sent messages and can be primed to fail.
type recordingTransport struct {
	destinations []string
	bodies       []string
	err          error
}

func (r *recordingTransport) Send(_ context.Context, destination, body string) error {
	if r.err != nil {
		return r.err
	}
	r.destinations = append(r.destinations, destination)
	r.bodies = append(r.bodies, body)
	return nil
}

// recordingPublisher captures published reports.
type recordingPublisher struct {
	reports []string
	err     error
}

func (r *recordingPublisher) Publish(string, float64) error { return nil }
func (r *recordingPublisher) PublishReport(body string) error {
	if r.err != nil {
		return r.err
	}
	r.reports = append(r.reports, body)
	return nil
}
func (r *recordingPublisher) Close() {}

func criticalReport() Report {
	return Report{
		Estimate: vitals.Estimate{
			HeartRate:      110,
			HeartRateValid: true,
			SpO2:           90,
			SpO2Valid:      true,
		},
		Status:    vitals.StatusCritical,
		Condition: "High BPM, Low SPO2",
	}
}

func TestFormatReport(t *testing.T) {
	body := FormatReport(criticalReport())

	for _, want := range []string{"Heart Rate: 110 BPM", "SPO2: 90%", "Condition: High BPM, Low SPO2"} {
		if !strings.Contains(body, want) {
			t.Errorf("Report missing %q:\n%s", want, body)
		}
	}
}

func TestFormatReportInvalidMetrics(t *testing.T) {
	body := FormatReport(Report{Condition: "Normal"})

	if !strings.Contains(body, "Heart Rate: -- BPM") {
		t.Errorf("Expected placeholder heart rate, got:\n%s", body)
	}
	if !strings.Contains(body, "SPO2: --%") {
		t.Errorf("Expected placeholder SpO2, got:\n%s", body)
	}
	if !strings.Contains(body, "Condition: Normal") {
		t.Errorf("Expected normal condition, got:\n%s", body)
	}
}

func TestDispatchDeliversToAllChannels(t *testing.T) {
	sms := &recordingTransport{}
	pub := &recordingPublisher{}
	d := NewDispatcher(sms, "+15551234567", pub, zap.NewNop())

	if err := d.Dispatch(context.Background(), criticalReport()); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if len(sms.bodies) != 1 {
		t.Fatalf("Expected 1 SMS, got %d", len(sms.bodies))
	}
	if sms.destinations[0] != "+15551234567" {
		t.Errorf("Unexpected destination %q", sms.destinations[0])
	}
	if len(pub.reports) != 1 {
		t.Fatalf("Expected 1 telemetry report, got %d", len(pub.reports))
	}
	if sms.bodies[0] != pub.reports[0] {
		t.Error("SMS and telemetry bodies differ")
	}
}

func TestDispatchSMSFailureStillPublishes(t *testing.T) {
	sms := &recordingTransport{err: errors.New("gateway down")}
	pub := &recordingPublisher{}
	d := NewDispatcher(sms, "+15551234567", pub, zap.NewNop())

	err := d.Dispatch(context.Background(), criticalReport())
	if err == nil {
		t.Fatal("Expected error when SMS fails")
	}
	if len(pub.reports) != 1 {
		t.Errorf("Expected telemetry delivery despite SMS failure, got %d reports", len(pub.reports))
	}
}

func TestDispatchPublisherFailureStillSends(t *testing.T) {
	sms := &recordingTransport{}
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(sms, "+15551234567", pub, zap.NewNop())

	err := d.Dispatch(context.Background(), criticalReport())
	if err == nil {
		t.Fatal("Expected error when publisher fails")
	}
	if len(sms.bodies) != 1 {
		t.Errorf("Expected SMS delivery despite publisher failure, got %d", len(sms.bodies))
	}
}
