package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lockdrop/config"
	"lockdrop/core/events"
	"lockdrop/core/state"
	"lockdrop/gateway/middleware"
	"lockdrop/observability/logging"
	telemetry "lockdrop/observability/otel"
	"lockdrop/services/claimsd/collab"
	"lockdrop/services/claimsd/server"
	"lockdrop/services/claimsd/sink"
)

func main() {
	var (
		cfgPath     string
		logRequests bool
	)
	flag.StringVar(&cfgPath, "config", "claimsd.toml", "path to claimsd configuration file")
	flag.BoolVar(&logRequests, "log-requests", false, "log every served request")
	flag.Parse()

	if err := run(cfgPath, logRequests); err != nil {
		slog.Error("claimsd: exiting", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfgPath string, logRequests bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, logCloser := logging.Setup("claimsd", cfg.Environment, logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "claimsd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("claimsd: opening collaborator store", slog.String("dsn", logging.MaskDSN(cfg.CollaboratorDSN)))
	store, err := collab.Open(cfg.CollaboratorDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	if path := strings.TrimSpace(cfg.SeedFile); path != "" {
		seed, err := collab.LoadSeed(path)
		if err != nil {
			return err
		}
		if err := seed.Apply(store); err != nil {
			return err
		}
		logger.Info("claimsd: collaborator seed applied", slog.String("path", path))
	}

	var extra []events.Emitter
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := sink.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		extra = append(extra, publisher)
	}

	manager := state.NewManager(db)
	manager.SetEmitter(emitters(logger, extra...))
	node, err := buildNode(cfg, manager, store, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		Auth: middleware.AuthConfig{
			Enabled:    strings.TrimSpace(cfg.Auth.HMACSecret) != "",
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		LogRequests: logRequests,
	}, node, tel.Tracer, logger)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		logger.Warn("claimsd: authentication disabled, trusting X-Subject header")
	}

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		metricsSrv := &http.Server{Addr: addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("claimsd: metrics server failed", slog.Any("error", err))
			}
		}()
		defer metricsSrv.Close()
	}

	return srv.Run(ctx)
}
