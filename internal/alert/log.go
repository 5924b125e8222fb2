package alert

import "go.uber.org/zap"

// LogOutput renders annunciator transitions into the structured log.
// It stands in for the GPIO lines on simulated deployments.
type LogOutput struct {
	logger *zap.Logger
}

// NewLogOutput returns an output backed by the given logger.
func NewLogOutput(logger *zap.Logger) *LogOutput {
	return &LogOutput{logger: logger}
}

func (o *LogOutput) Set(ch Channel, on bool) {
	o.logger.Info("annunciator", zap.String("channel", ch.String()), zap.Bool("on", on))
}
