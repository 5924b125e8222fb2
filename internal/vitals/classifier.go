package vitals

import "strings"

// Status is the clinical classification of one completed measurement.
type Status int

const (
	StatusNormal Status = iota
	StatusLowHeartRate
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusCritical:
		return "critical"
	case StatusLowHeartRate:
		return "low_heart_rate"
	default:
		return "normal"
	}
}

// Thresholds holds the classification boundaries in BPM and percent.
type Thresholds struct {
	HighHeartRate int
	LowHeartRate  int
	LowSpO2       int
}

// Classifier maps an estimate to a status. Invalid metrics never
// contribute to a classification, so a fully invalid estimate reads as
// normal.
type Classifier struct {
	t Thresholds
}

// NewClassifier returns a classifier with the given thresholds.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Classify evaluates critical conditions before low-rate ones, so an
// estimate that is simultaneously bradycardic and hypoxic is critical.
// Boundaries are exclusive: exactly HighHeartRate BPM is not high and
// exactly LowHeartRate BPM is not low.
func (c *Classifier) Classify(e Estimate) Status {
	highHR := e.HeartRateValid && e.HeartRate > c.t.HighHeartRate
	lowSpO2 := e.SpO2Valid && e.SpO2 < c.t.LowSpO2
	if highHR || lowSpO2 {
		return StatusCritical
	}
	if e.HeartRateValid && e.HeartRate < c.t.LowHeartRate {
		return StatusLowHeartRate
	}
	return StatusNormal
}

// Condition renders the threshold breaches behind a classification as
// human-readable text for reports, e.g. "High BPM, Low SPO2". An
// estimate breaching nothing reads "Normal".
func (c *Classifier) Condition(e Estimate) string {
	var parts []string
	if e.HeartRateValid && e.HeartRate > c.t.HighHeartRate {
		parts = append(parts, "High BPM")
	}
	if e.HeartRateValid && e.HeartRate < c.t.LowHeartRate {
		parts = append(parts, "Low BPM")
	}
	if e.SpO2Valid && e.SpO2 < c.t.LowSpO2 {
		parts = append(parts, "Low SPO2")
	}
	if len(parts) == 0 {
		return "Normal"
	}
	return strings.Join(parts, ", ")
}
