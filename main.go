package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"exgateway/config"
	"exgateway/internal/connector/registry"
	"exgateway/internal/gateway"
	"exgateway/internal/metrics"
	"exgateway/internal/model"
	"exgateway/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithEnv("APP_ENV").WithFields(logger.Fields{
		"service":     cfg.Gateway.Name,
		"version":     cfg.Gateway.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting exchange gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conns, err := registry.Build(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to build exchange connectors")
		os.Exit(1)
	}

	cw := metrics.NewCloudWatch(ctx, cfg.Metrics.CloudWatch)
	cw.Start(ctx)
	recorders := metrics.Fanout{cw}

	var prom *metrics.Prometheus
	if cfg.Metrics.Prometheus.Enabled {
		prom = metrics.NewPrometheus()
		if err := prom.Serve(cfg.Metrics.Prometheus.Addr, cfg.Metrics.Prometheus.Path); err != nil {
			log.WithError(err).Error("failed to start prometheus exporter")
			os.Exit(1)
		}
		recorders = append(recorders, prom)
	}

	opts := []gateway.Option{gateway.WithRecorder(recorders)}
	for _, c := range conns {
		opts = append(opts, gateway.WithConnector(c))
	}
	gw := gateway.New(gateway.SettingsFromConfig(cfg), log, opts...)
	gw.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runHealthChecks(ctx, gw, cfg.Health.Interval, log)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if err := gw.Close(); err != nil {
		log.WithError(err).Warn("gateway close reported an error")
	}

	log.Info("stopping cloudwatch publisher")
	cw.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if prom != nil {
		log.Info("stopping prometheus exporter")
		if err := prom.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("prometheus exporter shutdown failed")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-shutdownCtx.Done():
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("exchange gateway stopped")
}

// runHealthChecks probes every exchange on interval until ctx is done.
func runHealthChecks(ctx context.Context, gw *gateway.Gateway, interval time.Duration, log *logger.Log) {
	if interval <= 0 {
		return
	}
	entry := log.WithComponent("health")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		statuses := gw.HealthCheck(ctx)
		names := make([]string, 0, len(statuses))
		for name := range statuses {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := statuses[name]
			fields := logger.Fields{
				"exchange":    name,
				"status":      s.Status,
				"credentials": s.HasCredentials,
			}
			if s.Status == model.HealthConnected {
				entry.WithFields(fields).Debug("exchange healthy")
			} else {
				entry.WithFields(fields).WithFields(logger.Fields{"detail": s.Detail}).Warn("exchange unhealthy")
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
