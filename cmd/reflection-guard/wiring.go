package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stoicmail/reflection-guard/internal/alerting"
	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/engine"
	"github.com/stoicmail/reflection-guard/internal/metrics"
	"github.com/stoicmail/reflection-guard/internal/store"
)

// runtime is everything a command needs to validate content.
type runtime struct {
	pipeline *engine.Pipeline
	store    store.Store
	close    func()
}

func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	st, err := store.Open(ctx, cfg.Store, logger, metrics.HistoryConflict)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	notifier, closeNotifier, err := alerting.Build(cfg.Notifications, cfg.Security.Alerting.MaxNotificationsPerMinute, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("build notifiers: %w", err)
	}

	pipeline, err := engine.NewPipeline(cfg.Security, engine.Dependencies{
		History:  st,
		Audit:    st,
		Metrics:  metrics.Sink{},
		Notifier: notifier,
	}, logger)
	if err != nil {
		closeNotifier()
		_ = st.Close()
		return nil, err
	}

	return &runtime{
		pipeline: pipeline,
		store:    st,
		close: func() {
			closeNotifier()
			if err := st.Close(); err != nil {
				logger.Warn("close store", slog.Any("error", err))
			}
		},
	}, nil
}
