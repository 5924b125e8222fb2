package config

import (
	"os"
	"strconv"
	"time"
)

// Config contains all monitor settings.
type Config struct {
	// HTTP API
	HTTPPort string

	// Sensor
	SensorDriver        string // "sim" or "max30102"
	I2CBus              string
	SampleRateHz        int
	FingerIRFloor       uint32
	SensorPollInterval  time.Duration
	SensorReadTimeout   time.Duration
	SensorRetryInterval time.Duration

	// Measurement cycle
	WindowSize          int
	SlideStep           int
	MeasurementDuration time.Duration
	LoopTick            time.Duration
	IdlePromptAfter     time.Duration
	DebounceWindow      time.Duration

	// Classification thresholds
	HighHeartRate int
	LowHeartRate  int
	LowSpO2       int

	// Alerts
	AlertHold time.Duration
	PulseOn   time.Duration
	PulseOff  time.Duration

	// GPIO pin names (hardware deployments)
	TriggerPin     string
	CriticalLEDPin string
	LowLEDPin      string
	NormalLEDPin   string
	BuzzerPin      string

	// Simulated trigger (sim deployments)
	AutoTriggerEvery time.Duration
	AutoTriggerHold  time.Duration

	// Telemetry (MQTT). Empty broker disables the channel.
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	// SMS gateway. Empty URL disables the channel.
	SMSGatewayURL  string
	SMSAPIKey      string
	SMSDestination string
	SMSTimeout     time.Duration

	// Storage. Empty DSN/addr disables the corresponding store.
	PostgresDSN    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	VitalsCacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),

		SensorDriver:        getEnvString("SENSOR_DRIVER", "sim"),
		I2CBus:              getEnvString("I2C_BUS", ""),
		SampleRateHz:        getEnvInt("SAMPLE_RATE_HZ", 25),
		FingerIRFloor:       uint32(getEnvInt("FINGER_IR_FLOOR", 50000)),
		SensorPollInterval:  getEnvDurationMS("SENSOR_POLL_INTERVAL_MS", 2),
		SensorReadTimeout:   getEnvDurationMS("SENSOR_READ_TIMEOUT_MS", 3000),
		SensorRetryInterval: getEnvDurationMS("SENSOR_RETRY_INTERVAL_MS", 5000),

		WindowSize:          getEnvInt("WINDOW_SIZE", 100),
		SlideStep:           getEnvInt("SLIDE_STEP", 25),
		MeasurementDuration: getEnvDurationMS("MEASUREMENT_DURATION_MS", 15000),
		LoopTick:            getEnvDurationMS("LOOP_TICK_MS", 20),
		IdlePromptAfter:     getEnvDurationMS("IDLE_PROMPT_AFTER_MS", 30000),
		DebounceWindow:      getEnvDurationMS("DEBOUNCE_MS", 50),

		HighHeartRate: getEnvInt("HIGH_HEART_RATE", 100),
		LowHeartRate:  getEnvInt("LOW_HEART_RATE", 60),
		LowSpO2:       getEnvInt("LOW_SPO2", 95),

		AlertHold: getEnvDurationMS("ALERT_HOLD_MS", 5000),
		PulseOn:   getEnvDurationMS("PULSE_ON_MS", 150),
		PulseOff:  getEnvDurationMS("PULSE_OFF_MS", 100),

		TriggerPin:     getEnvString("TRIGGER_PIN", "GPIO17"),
		CriticalLEDPin: getEnvString("CRITICAL_LED_PIN", "GPIO22"),
		LowLEDPin:      getEnvString("LOW_LED_PIN", "GPIO23"),
		NormalLEDPin:   getEnvString("NORMAL_LED_PIN", "GPIO24"),
		BuzzerPin:      getEnvString("BUZZER_PIN", "GPIO25"),

		AutoTriggerEvery: getEnvDurationMS("AUTO_TRIGGER_EVERY_MS", 30000),
		AutoTriggerHold:  getEnvDurationMS("AUTO_TRIGGER_HOLD_MS", 500),

		MQTTBroker:      getEnvString("MQTT_BROKER", ""),
		MQTTClientID:    getEnvString("MQTT_CLIENT_ID", "pulse-monitor"),
		MQTTUsername:    getEnvString("MQTT_USERNAME", ""),
		MQTTPassword:    getEnvString("MQTT_PASSWORD", ""),
		MQTTTopicPrefix: getEnvString("MQTT_TOPIC_PREFIX", "monitor/vitals"),

		SMSGatewayURL:  getEnvString("SMS_GATEWAY_URL", ""),
		SMSAPIKey:      getEnvString("SMS_API_KEY", ""),
		SMSDestination: getEnvString("SMS_DESTINATION", ""),
		SMSTimeout:     getEnvDurationMS("SMS_TIMEOUT_MS", 10000),

		PostgresDSN:    getEnvString("POSTGRES_DSN", ""),
		RedisAddr:      getEnvString("REDIS_ADDR", ""),
		RedisPassword:  getEnvString("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		VitalsCacheTTL: getEnvDurationMS("VITALS_CACHE_TTL_MS", 60000),

		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "console"),
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationMS(key string, defaultMS int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(intValue) * time.Millisecond
		}
	}
	return time.Duration(defaultMS) * time.Millisecond
}
