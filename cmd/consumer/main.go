package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/party-rides/internal/config"
	"github.com/example/party-rides/internal/dispatch"
	"github.com/example/party-rides/internal/logging"
	"github.com/example/party-rides/internal/notify"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_messages_consumed_total",
		Help: "Total notification messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_messages_invalid_total",
		Help: "Total messages that did not decode to an envelope",
	})
	deliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_deliveries_total",
		Help: "Total notifications delivered",
	})
	deliveryErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_delivery_errors_total",
		Help: "Total notifications dropped after all delivery attempts",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, deliveries, deliveryErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var deliverer notify.Notifier
	if cfg.FirebaseCredentials != "" {
		fcm, err := dispatch.NewFCMNotifier(ctx, cfg.FirebaseCredentials)
		if err != nil {
			logger.Error("firebase setup failed", "error", err)
			os.Exit(1)
		}
		deliverer = fcm
	} else {
		logger.Warn("FIREBASE_CREDENTIALS not set, notifications will only be logged")
		deliverer = dispatch.LogNotifier{Logger: logging.Component(logger, "notify")}
	}

	// metrics and health
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.NotifyTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() { _ = r.Close() }()

	logger.Info("consumer listening", "topic", cfg.NotifyTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)
	run(ctx, r, deliverer, cfg.DeliveryAttempts, cfg.DeliveryBackoff, logger)
	logger.Info("shutting down consumer")
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func run(ctx context.Context, r MessageReader, d notify.Notifier, attempts int, delay time.Duration, logger *slog.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka read error, backing off", "error", err, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		var env notify.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil || env.UserID == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "offset", m.Offset, "error", err)
			continue
		}

		if err := deliverWithRetry(ctx, d, env, attempts, delay); err != nil {
			deliveryErrors.Inc()
			logger.Error("delivery failed", "user_id", env.UserID, "reason", env.Reason, "error", err)
			continue
		}
		deliveries.Inc()
	}
}

// deliverWithRetry tries up to attempts times, doubling delay between tries.
func deliverWithRetry(ctx context.Context, d notify.Notifier, env notify.Envelope, attempts int, delay time.Duration) error {
	var errs []error
	for i := 0; i < attempts; i++ {
		err := d.Notify(ctx, env)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		if i == attempts-1 {
			break
		}
		if !sleep(ctx, delay) {
			errs = append(errs, ctx.Err())
			break
		}
		delay *= 2
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
