// Command worker consumes recorded user actions from kafka and applies them
// to preference profiles. It optionally serves Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/bootstrap"
	"github.com/turtacn/ProtocolIQ/internal/config"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/prometheus"
)

const (
	statsInterval   = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	serveMetrics := flag.String("serve-metrics", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	flag.Parse()

	if err := run(*configPath, *serveMetrics); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string) error {
	var opts []config.LoadOption
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	} else {
		opts = append(opts, config.WithSearchPaths(".", "/etc/protocoliq"))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka.enabled must be true for the worker")
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close failed", logging.Err(err))
		}
	}()

	if err := ensureTopics(ctx, cfg.Kafka, logger); err != nil {
		logger.Warn("topic provisioning failed; assuming topics exist", logging.Err(err))
	}

	consumer, err := kafka.NewConsumer(bootstrap.ConsumerConfig(cfg.Kafka), logger)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	consumer.Subscribe(cfg.Kafka.ActionTopic, kafka.NewActionHandler(app.Service, logger))
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	var metricsSrv *prometheus.Server
	if app.Collector != nil {
		metricsSrv = prometheus.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, app.Collector, logger)
		if err := metricsSrv.Start(); err != nil {
			_ = consumer.Close()
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	if configPath != "" {
		err := config.Watch(configPath, app.Reload, func(err error) {
			logger.Warn("ignoring invalid configuration change", logging.Err(err))
		})
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	logger.Info("worker started",
		logging.String("topic", cfg.Kafka.ActionTopic),
		logging.String("group", cfg.Kafka.GroupID),
		logging.Strings("brokers", cfg.Kafka.Brokers))

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			reportStats(ctx, app, consumer, cfg.Kafka.ActionTopic, logger)
		}
	}

	logger.Info("shutting down")
	if err := consumer.Close(); err != nil {
		logger.Error("consumer close failed", logging.Err(err))
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}
	return nil
}

func ensureTopics(ctx context.Context, k config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(k.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(k.ActionTopic, k.DeadLetterTopic))
}

func reportStats(ctx context.Context, app *bootstrap.App, consumer *kafka.Consumer, topic string, logger logging.Logger) {
	st := consumer.Stats()
	healthErr := app.HealthCheck(ctx)
	if healthErr != nil {
		logger.Warn("health check failed", logging.Err(healthErr))
	}
	if app.Metrics == nil {
		return
	}
	app.Metrics.SetConsumerCounters(topic, map[string]int64{
		"consumed":      st.Consumed,
		"processed":     st.Processed,
		"failed":        st.Failed,
		"retried":       st.Retried,
		"dead_lettered": st.DeadLettered,
	}, st.Lag)
}
