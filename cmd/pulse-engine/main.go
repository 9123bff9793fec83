package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netpulsehq/netpulse/internal/cache"
	"github.com/netpulsehq/netpulse/internal/config"
	"github.com/netpulsehq/netpulse/internal/daemon"
	"github.com/netpulsehq/netpulse/internal/fingerprint"
	"github.com/netpulsehq/netpulse/internal/metrics"
	"github.com/netpulsehq/netpulse/internal/probe"
	"github.com/netpulsehq/netpulse/internal/server"
	"github.com/netpulsehq/netpulse/internal/state"
	"github.com/netpulsehq/netpulse/internal/store"
	"github.com/netpulsehq/netpulse/internal/track"
	"github.com/netpulsehq/netpulse/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting pulse-engine",
		slog.String("storage", cfg.Storage.Path),
		slog.Duration("interval", cfg.Monitor.Interval))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		cacheProvider = cache.NewMemoryProvider()
	}
	defer cacheProvider.Close()

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open store", slog.String("path", cfg.Storage.Path), slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	deviceID, err := daemon.DeviceID(*cfg)
	if err != nil {
		logger.Error("failed to resolve device id", slog.Any("error", err))
		os.Exit(1)
	}

	collector := fingerprint.NewCollector(logger, cacheProvider, cfg.Cache.PublicIPTTL)
	pipeline := probe.NewPipeline(logger, cfg.Monitor.Probes, nil, nil, nil)
	engine := state.NewEngine(logger, st)
	detector := track.NewDetector(logger, cfg.Monitor.Debounce, deviceID)
	runner := daemon.NewRunner(logger, *cfg, deviceID, collector, pipeline, engine, detector, st)

	querySrv := server.New(cfg.Server, logger, st)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := querySrv.Start(); serveErr != nil {
			logger.Error("query server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		if runErr := runner.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("monitor loop exited", slog.Any("error", runErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Let a cycle in progress finish before closing the store.
	<-runnerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := querySrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("query server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("pulse-engine stopped")
}
