// Package notify dispatches completed measurement reports over SMS and
// telemetry.
package notify

import (
	"fmt"
	"strings"

	"github.com/oxitrack/pulse-monitor/internal/vitals"
)

// Report is the outbound summary of one completed measurement.
type Report struct {
	Estimate  vitals.Estimate
	Status    vitals.Status
	Condition string
}

// FormatReport renders the fixed three-line message sent to carers.
// Invalid metrics render as "--" so the recipient can tell a failed
// reading from a zero one.
func FormatReport(r Report) string {
	var b strings.Builder

	if r.Estimate.HeartRateValid {
		fmt.Fprintf(&b, "Heart Rate: %d BPM\n", r.Estimate.HeartRate)
	} else {
		b.WriteString("Heart Rate: -- BPM\n")
	}

	if r.Estimate.SpO2Valid {
		fmt.Fprintf(&b, "SPO2: %d%%\n", r.Estimate.SpO2)
	} else {
		b.WriteString("SPO2: --%\n")
	}

	fmt.Fprintf(&b, "Condition: %s", r.Condition)

	return b.String()
}
