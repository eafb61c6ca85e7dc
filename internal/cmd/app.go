package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/config"
	"github.com/felixgeelhaar/orchestra/internal/gate"
	"github.com/felixgeelhaar/orchestra/internal/log"
	"github.com/felixgeelhaar/orchestra/internal/metrics"
	"github.com/felixgeelhaar/orchestra/internal/tui"
)

// app is the set of components one command invocation works with
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *checkpoint.Store
	gates    *gate.Manager
	styles   tui.Styles
}

func newApp(cmd *cobra.Command, overrides ...func(*config.Config)) (*app, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, err := cc.LoadConfig(overrides...)
	if err != nil {
		return nil, err
	}

	logger := setupLogging(cfg, cmd.ErrOrStderr())
	reg, m := metrics.NewRegistry()

	store, err := openStore(cfg, logger, m)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
		store:    store,
		gates: gate.NewManager(store,
			gate.WithSkips(cfg.Skips()),
			gate.WithLogger(logger),
			gate.WithRecorder(m),
		),
		styles: tui.DefaultStyles(),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close checkpoint store")
	}
}

func openStore(cfg *config.Config, logger *log.Logger, rec checkpoint.Recorder) (*checkpoint.Store, error) {
	var repo checkpoint.Repository
	switch cfg.Store.Backend {
	case config.BackendBadger:
		b, err := checkpoint.OpenBadger(checkpoint.BadgerConfig{
			Path:       cfg.Store.Path,
			SyncWrites: cfg.Store.SyncWrites,
			Logger:     logger.Slog(),
		})
		if err != nil {
			return nil, err
		}
		repo = b
	default:
		repo = checkpoint.NewFileRepository(cfg.Store.Path)
	}
	return checkpoint.NewStore(repo,
		checkpoint.WithLogger(logger),
		checkpoint.WithRecorder(rec),
	), nil
}
