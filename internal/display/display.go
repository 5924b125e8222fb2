// Package display abstracts the operator-facing character display.
package display

import "go.uber.org/zap"

// Rows used by the monitor. Row 0 carries state and prompts, row 1
// carries live vitals.
const (
	RowStatus = 0
	RowVitals = 1
)

// Adapter is a small fixed-row text display.
type Adapter interface {
	Clear()
	WriteRow(row int, text string)
}

// LogDisplay renders display writes into the structured log. It stands
// in for a character LCD on headless deployments and in tests.
type LogDisplay struct {
	logger *zap.Logger
}

// NewLogDisplay returns a display backed by the given logger.
func NewLogDisplay(logger *zap.Logger) *LogDisplay {
	return &LogDisplay{logger: logger}
}

func (d *LogDisplay) Clear() {
	d.logger.Debug("display cleared")
}

func (d *LogDisplay) WriteRow(row int, text string) {
	d.logger.Info("display", zap.Int("row", row), zap.String("text", text))
}
