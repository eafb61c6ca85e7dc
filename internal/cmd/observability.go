package cmd

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/orchestra/internal/config"
	"github.com/felixgeelhaar/orchestra/internal/log"
	"github.com/felixgeelhaar/orchestra/internal/metrics"
	"github.com/felixgeelhaar/orchestra/internal/telemetry"
	"github.com/felixgeelhaar/orchestra/internal/version"
)

// setupLogging builds the process logger from cfg. Logs go to w so stdout
// stays reserved for command output.
func setupLogging(cfg *config.Config, w io.Writer) *log.Logger {
	lc := cfg.LoggerConfig()
	lc.Output = w
	lc.ServiceName = "orchestra"

	logger := log.New(lc)
	log.SetDefaultLogger(logger)
	return logger
}

// setupTelemetry installs the tracer provider when tracing is enabled. It
// returns a cleanup function that should be deferred by the caller.
func setupTelemetry(ctx context.Context, cfg *config.Config, spans io.Writer, logger *log.Logger) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	tc := cfg.TelemetryConfig(version.GetInfo().Version)
	tc.Output = spans
	shutdown, err := telemetry.InitProvider(ctx, tc)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush telemetry", "error", err)
		}
	}
}

// startMetrics serves reg on addr in the background until ctx ends. An empty
// addr disables the endpoint.
func startMetrics(ctx context.Context, addr string, reg prometheus.Gatherer, logger *log.Logger) {
	if addr == "" {
		return
	}
	logger.Info("serving metrics", "addr", addr, "path", "/metrics")
	go func() {
		if err := metrics.Serve(ctx, addr, reg); err != nil {
			logger.WithError(err).Error("metrics endpoint stopped")
		}
	}()
}
