package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oxitrack/pulse-monitor/internal/telemetry"
)

// Dispatcher sends a completed report to every configured channel.
// Delivery is best effort: one channel failing never stops the others,
// and the caller gets the combined error for logging only.
type Dispatcher struct {
	sms         SmsTransport
	destination string
	publisher   telemetry.Publisher
	logger      *zap.Logger
}

// NewDispatcher wires the SMS transport and telemetry publisher
// together. destination is the carer's phone number.
func NewDispatcher(sms SmsTransport, destination string, publisher telemetry.Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sms:         sms,
		destination: destination,
		publisher:   publisher,
		logger:      logger,
	}
}

// Dispatch formats the report and delivers it over SMS and telemetry.
func (d *Dispatcher) Dispatch(ctx context.Context, r Report) error {
	body := FormatReport(r)

	var errs []error

	if err := d.sms.Send(ctx, d.destination, body); err != nil {
		d.logger.Error("sms delivery failed", zap.Error(err))
		errs = append(errs, err)
	} else {
		d.logger.Info("sms delivered", zap.String("destination", d.destination))
	}

	if err := d.publisher.PublishReport(body); err != nil {
		d.logger.Error("telemetry report delivery failed", zap.Error(err))
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of 2 channels failed: %v", len(errs), errs)
	}
	return nil
}
