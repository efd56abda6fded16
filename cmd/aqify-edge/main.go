package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/aqify/aqify-edge/internal/adapter/http"
	"github.com/aqify/aqify-edge/internal/api"
	"github.com/aqify/aqify-edge/internal/config"
	"github.com/aqify/aqify-edge/internal/engine"
	"github.com/aqify/aqify-edge/internal/geo"
	"github.com/aqify/aqify-edge/internal/live"
	"github.com/aqify/aqify-edge/internal/observability"
	"github.com/aqify/aqify-edge/internal/prefs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store := prefs.Open(cfg.PrefsPath, logger, metrics)
	client := api.NewClient(cfg.BaseURL, cfg.APITimeout, cfg.APIRetries, logger, metrics)

	provider := geo.NewIPLocationProvider(cfg.GeoProviderURL, cfg.GeoTimeout, logger)
	resolver := geo.NewResolver(provider, store, cfg.GeoTimeout, logger, metrics)

	eng := engine.New(client, store, resolver, logger, metrics)
	channel := live.New(cfg.WSURL, eng, cfg.ReconnectMinBackoff, cfg.ReconnectMaxBackoff, logger, metrics)
	eng.AttachChannel(channel)

	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	eng.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	eng.Stop()

	logger.Info("shutdown complete")
}
