// Package main implements the entry point for the Drasi MQTT source
// connector. The connector subscribes to an MQTT topic subtree, maps every
// delivered message into a graph change record, and feeds the records to the
// downstream change-processing pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Joshuathomas18/drasi-mqtt-poc/component"
	"github.com/Joshuathomas18/drasi-mqtt-poc/config"
	"github.com/Joshuathomas18/drasi-mqtt-poc/health"
	inputmqtt "github.com/Joshuathomas18/drasi-mqtt-poc/input/mqtt"
	"github.com/Joshuathomas18/drasi-mqtt-poc/metric"
	"github.com/Joshuathomas18/drasi-mqtt-poc/natsclient"
	"github.com/Joshuathomas18/drasi-mqtt-poc/output/changestream"

	"github.com/nats-io/nats.go/jetstream"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "drasi-mqtt-source"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Connector failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting MQTT source connector",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	metricsRegistry := metric.NewMetricsRegistry()
	deps := component.Dependencies{
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	sink, err := buildSink(signalCtx, cfg, deps)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			slog.Warn("failed to close sink", "error", err)
		}
	}()

	source := inputmqtt.NewInput(inputmqtt.InputDeps{
		Name:            appName,
		Config:          cfg.Broker,
		Sink:            sink,
		MetricsRegistry: metricsRegistry,
		Logger:          deps.GetLoggerWithComponent("mqtt-source"),
	})
	if err := source.Initialize(); err != nil {
		return fmt.Errorf("initialize source: %w", err)
	}

	group, groupCtx := errgroup.WithContext(signalCtx)

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		slog.Info("metrics server listening", "port", metricsServer.Port(), "path", metricsServer.Path())
		group.Go(func() error {
			<-groupCtx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Stop(stopCtx)
		})
	}

	if cfg.Health.Enabled {
		healthHandler := health.NewHandler(appName)
		healthHandler.Register("mqtt-source", source)
		startHealthServer(groupCtx, group, cfg.Health.Port, healthHandler)
	}

	if err := source.Start(signalCtx); err != nil {
		return fmt.Errorf("start source: %w", err)
	}

	slog.Info("Connector started",
		"broker", cfg.Broker.URL(),
		"topic_pattern", cfg.Broker.TopicPattern,
		"nats_enabled", cfg.NATS.Enabled)

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := source.Stop(cliCfg.ShutdownTimeout); err != nil {
		slog.Error("Error stopping source", "error", err)
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Connector shutdown complete")
	return nil
}

// buildSink wires the downstream change stream: a NATS publisher when
// configured, otherwise the log sink.
func buildSink(ctx context.Context, cfg *config.Config, deps component.Dependencies) (changestream.Ingestor, error) {
	if !cfg.NATS.Enabled {
		slog.Info("no change stream configured, logging records")
		return changestream.NewLogSink(deps.GetLoggerWithComponent("change-log")), nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(deps.GetLoggerWithComponent("natsclient")),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	if cfg.NATS.JetStream {
		if err := client.EnsureStream(connectCtx, jetstream.StreamConfig{
			Name:     cfg.NATS.Stream,
			Subjects: []string{cfg.NATS.Subject},
		}); err != nil {
			return nil, fmt.Errorf("ensure stream: %w", err)
		}
	}

	publisher, err := changestream.NewPublisher(client, changestream.PublisherConfig{
		Subject: cfg.NATS.Subject,
		Durable: cfg.NATS.JetStream,
	}, deps.GetLoggerWithComponent("changestream"))
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}

	return publisher, nil
}

// startHealthServer serves the health endpoint until the group context ends.
func startHealthServer(ctx context.Context, group *errgroup.Group, port int, handler *health.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", handler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group.Go(func() error {
		slog.Info("health server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(stopCtx)
	})
}
