package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oxitrack/pulse-monitor/internal/alert"
	"github.com/oxitrack/pulse-monitor/internal/config"
	"github.com/oxitrack/pulse-monitor/internal/display"
	"github.com/oxitrack/pulse-monitor/internal/httpapi"
	"github.com/oxitrack/pulse-monitor/internal/notify"
	"github.com/oxitrack/pulse-monitor/internal/sensor"
	"github.com/oxitrack/pulse-monitor/internal/session"
	"github.com/oxitrack/pulse-monitor/internal/storage"
	"github.com/oxitrack/pulse-monitor/internal/telemetry"
	"github.com/oxitrack/pulse-monitor/internal/trigger"
	"github.com/oxitrack/pulse-monitor/internal/vitals"
)

func main() {
	// A .env file is optional; real deployments set the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg)
	defer logger.Sync()

	logger.Info("starting pulse monitor",
		zap.String("sensor_driver", cfg.SensorDriver),
		zap.String("http_port", cfg.HTTPPort))

	clk := clock.New()
	disp := display.NewLogDisplay(logger)

	source, trig := buildSensor(cfg, clk, disp, logger)
	alerts := alert.NewController(buildAlertOutput(cfg, logger), clk, cfg.AlertHold, cfg.PulseOn, cfg.PulseOff, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := telemetry.NewHub(logger)
	go hub.Run(ctx)

	publisher := buildPublisher(cfg, logger)
	defer publisher.Close()

	var smsTransport notify.SmsTransport = notify.NopTransport{}
	if cfg.SMSGatewayURL != "" {
		smsTransport = notify.NewHTTPSMSTransport(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSTimeout)
	} else {
		logger.Info("sms gateway not configured, reports go to telemetry only")
	}
	dispatcher := notify.NewDispatcher(smsTransport, cfg.SMSDestination, publisher, logger)

	repo, cache := buildStorage(cfg, logger)
	if repo != nil {
		defer repo.Close()
	}

	var store session.Store
	if repo != nil || cache != nil {
		store = &measurementStore{repo: repo, cache: cache, logger: logger}
	}

	monitor := session.New(session.Params{
		WindowSize:          cfg.WindowSize,
		SlideStep:           cfg.SlideStep,
		SensorPoll:          cfg.SensorPollInterval,
		SensorReadTimeout:   cfg.SensorReadTimeout,
		MeasurementDuration: cfg.MeasurementDuration,
		LoopTick:            cfg.LoopTick,
		IdlePromptAfter:     cfg.IdlePromptAfter,
		DebounceWindow:      cfg.DebounceWindow,
	}, session.Deps{
		Source:      source,
		Trigger:     trig,
		Display:     disp,
		Alerts:      alerts,
		Estimator:   vitals.NewEstimator(cfg.SampleRateHz, cfg.FingerIRFloor),
		Classifier:  vitals.NewClassifier(vitals.Thresholds{HighHeartRate: cfg.HighHeartRate, LowHeartRate: cfg.LowHeartRate, LowSpO2: cfg.LowSpO2}),
		Publisher:   publisher,
		Broadcaster: hub,
		Store:       store,
		Notifier:    dispatcher,
		Clock:       clk,
		Logger:      logger,
	})

	router := mux.NewRouter()
	httpapi.NewHandler(monitor, alerts, repo, cache, hub, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := monitor.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("monitor stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}

	logger.Info("stopped")
}

// buildSensor opens the configured sample source and trigger input,
// retrying hardware bring-up until it succeeds so a monitor that boots
// before its sensor settles still comes up.
func buildSensor(cfg *config.Config, clk clock.Clock, disp display.Adapter, logger *zap.Logger) (sensor.Source, trigger.Input) {
	if cfg.SensorDriver == "sim" {
		logger.Info("using simulated sensor")
		src := sensor.NewSimSource(cfg.SampleRateHz, 72, time.Now().UnixNano())
		trig := trigger.NewIntervalInput(clk, cfg.AutoTriggerEvery, cfg.AutoTriggerHold)
		return src, trig
	}

	var src *sensor.MAX30102Source
	for {
		var err error
		src, err = sensor.NewMAX30102Source(cfg.I2CBus)
		if err == nil {
			break
		}
		logger.Error("sensor bring-up failed, retrying",
			zap.Duration("retry_in", cfg.SensorRetryInterval),
			zap.Error(err))
		disp.WriteRow(display.RowStatus, "Sensor error")
		clk.Sleep(cfg.SensorRetryInterval)
	}

	trig, err := trigger.NewGPIOInput(cfg.TriggerPin)
	if err != nil {
		logger.Fatal("trigger bring-up failed", zap.Error(err))
	}

	return src, trig
}

func buildAlertOutput(cfg *config.Config, logger *zap.Logger) alert.Output {
	if cfg.SensorDriver == "sim" {
		return alert.NewLogOutput(logger)
	}

	out, err := alert.NewGPIOOutput(alert.Pins{
		CriticalLED: cfg.CriticalLEDPin,
		LowLED:      cfg.LowLEDPin,
		NormalLED:   cfg.NormalLEDPin,
		Buzzer:      cfg.BuzzerPin,
	})
	if err != nil {
		logger.Fatal("alert bring-up failed", zap.Error(err))
	}
	return out
}

func buildPublisher(cfg *config.Config, logger *zap.Logger) telemetry.Publisher {
	if cfg.MQTTBroker == "" {
		logger.Info("mqtt broker not configured, telemetry disabled")
		return telemetry.NopPublisher{}
	}

	pub, err := telemetry.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTopicPrefix, logger)
	if err != nil {
		logger.Error("mqtt bring-up failed, telemetry disabled", zap.Error(err))
		return telemetry.NopPublisher{}
	}
	return pub
}

func buildStorage(cfg *config.Config, logger *zap.Logger) (*storage.MeasurementRepository, *storage.VitalsCache) {
	var repo *storage.MeasurementRepository
	if cfg.PostgresDSN != "" {
		var err error
		repo, err = storage.NewMeasurementRepositoryFromDSN(cfg.PostgresDSN)
		if err != nil {
			logger.Error("postgres bring-up failed, history disabled", zap.Error(err))
			repo = nil
		} else {
			logger.Info("measurement history enabled")
		}
	}

	var cache *storage.VitalsCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis bring-up failed, vitals cache disabled", zap.Error(err))
		} else {
			cache = storage.NewVitalsCache(client, cfg.VitalsCacheTTL)
			logger.Info("vitals cache enabled")
		}
	}

	return repo, cache
}

// measurementStore persists completed measurements to the configured
// backends. Either backend may be absent.
type measurementStore struct {
	repo   *storage.MeasurementRepository
	cache  *storage.VitalsCache
	logger *zap.Logger
}

func (s *measurementStore) SaveMeasurement(ctx context.Context, r *session.Result) error {
	if s.repo != nil {
		m := &storage.Measurement{
			ID:             r.ID.String(),
			StartedAt:      r.StartedAt,
			CompletedAt:    r.CompletedAt,
			HeartRate:      r.Estimate.HeartRate,
			HeartRateValid: r.Estimate.HeartRateValid,
			SpO2:           r.Estimate.SpO2,
			SpO2Valid:      r.Estimate.SpO2Valid,
			Status:         r.StatusText,
			Condition:      r.Condition,
			Slides:         r.Slides,
		}
		if err := s.repo.Save(ctx, m); err != nil {
			return err
		}
	}

	if s.cache != nil {
		v := &storage.LatestVitals{
			HeartRate:      r.Estimate.HeartRate,
			HeartRateValid: r.Estimate.HeartRateValid,
			SpO2:           r.Estimate.SpO2,
			SpO2Valid:      r.Estimate.SpO2Valid,
			UpdatedAt:      r.CompletedAt,
		}
		if err := s.cache.SetLatest(ctx, v); err != nil {
			// The cache is advisory; a miss only stales the dashboard.
			s.logger.Warn("vitals cache update failed", zap.Error(err))
		}
	}

	return nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	level := zapcore.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var zcfg zap.Config
	if cfg.LogFormat == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
