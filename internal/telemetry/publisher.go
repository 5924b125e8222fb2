// Package telemetry publishes live vitals and completed reports to
// remote consumers over MQTT and WebSocket.
package telemetry

// Channels carrying live per-window values. An invalid metric is
// published as zero so consumers see the gap.
const (
	ChannelHeartRate = "heart_rate"
	ChannelSpO2      = "spo2"
)

// Publisher pushes monitor output to a remote broker.
type Publisher interface {
	// Publish sends one live metric value on a named channel.
	Publish(channel string, value float64) error
	// PublishReport sends the final text report of a completed
	// measurement.
	PublishReport(body string) error
	Close()
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(string, float64) error { return nil }
func (NopPublisher) PublishReport(string) error    { return nil }
func (NopPublisher) Close()                        {}
