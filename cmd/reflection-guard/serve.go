package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/stoicmail/reflection-guard/internal/api"
	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/metrics"
	"github.com/stoicmail/reflection-guard/internal/services"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	var configPath, envFile string
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to configuration file (YAML or JSON)")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &exitError{code: 1, err: err}
	}

	if err := loadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting reflection-guard",
		slog.String("address", cfg.Server.Address),
		slog.String("store", cfg.Store.Driver))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	guard := services.NewGuardService(logger, rt.pipeline)
	server, err := api.NewServer(cfg.Server, guard)
	if err != nil {
		return fmt.Errorf("create gRPC server: %w", err)
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var adminServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		adminServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      api.NewAdminRouter(promhttp.Handler(), rt.store.Ping),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("admin server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	server.Shutdown(shutdownCtx)

	if adminServer != nil {
		adminCtx, cancelAdmin := context.WithTimeout(context.Background(), 5*time.Second)
		if err := adminServer.Shutdown(adminCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("admin server shutdown", slog.Any("error", err))
		}
		cancelAdmin()
	}

	logger.Info("reflection-guard stopped", slog.Duration("p95", guard.Latency().P95))
	return nil
}
