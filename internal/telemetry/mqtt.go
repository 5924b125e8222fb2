package telemetry

import (
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTPublisher publishes metrics as plain decimal payloads on
// <prefix>/<channel> and reports on <prefix>/report.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	logger *zap.Logger
}

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishQoS     = 1
)

// NewMQTTPublisher connects to the broker and returns a publisher
// rooted at topicPrefix. Username may be empty for anonymous brokers.
func NewMQTTPublisher(brokerURL, clientID, username, password, topicPrefix string, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetUsername(username).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", zap.String("broker", brokerURL))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: could not connect to broker %s: %w", brokerURL, token.Error())
	}

	return &MQTTPublisher{client: client, prefix: topicPrefix, logger: logger}, nil
}

func (p *MQTTPublisher) Publish(channel string, value float64) error {
	topic := p.prefix + "/" + channel
	payload := strconv.FormatFloat(value, 'f', -1, 64)
	if token := p.client.Publish(topic, mqttPublishQoS, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("telemetry: publish to %s: %w", topic, token.Error())
	}
	return nil
}

func (p *MQTTPublisher) PublishReport(body string) error {
	topic := p.prefix + "/report"
	if token := p.client.Publish(topic, mqttPublishQoS, true, body); token.Wait() && token.Error() != nil {
		return fmt.Errorf("telemetry: publish report to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages a
// short grace period.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
