package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalvas/mqttsn"
	"github.com/vitalvas/mqttsn/extensions/config"
	"github.com/vitalvas/mqttsn/extensions/logging"
	"github.com/vitalvas/mqttsn/extensions/prommetrics"
)

// app is what both subcommands need before starting an engine.
type app struct {
	cfg       *config.File
	logger    mqttsn.Logger
	metrics   mqttsn.Metrics
	transport *mqttsn.UDPTransport
	server    *http.Server
}

func loadConfig(flags *rootFlags) (*config.File, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.listen != "" {
		cfg.Listen = flags.listen
	}

	return cfg, cfg.Validate()
}

func setup(flags *rootFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	rt := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: &mqttsn.NoOpMetrics{},
	}

	if cfg.Metrics.Listen != "" {
		prom := prommetrics.New(prommetrics.WithRuntimeMetrics())
		rt.metrics = prom

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, prom.Handler())
		rt.server = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	rt.transport, err = mqttsn.ListenUDP(cfg.Listen, cfg.UDPOptions()...)
	if err != nil {
		return nil, err
	}

	return rt, nil
}

// serve runs fn until SIGINT or SIGTERM, with the metrics endpoint alongside.
func (rt *app) serve(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer rt.transport.Close()

	if rt.server != nil {
		ln, err := net.Listen("tcp", rt.server.Addr)
		if err != nil {
			return err
		}

		go func() {
			if err := rt.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.logger.Error("metrics server failed", mqttsn.LogFields{mqttsn.LogFieldError: err.Error()})
			}
		}()
		defer rt.server.Close()

		rt.logger.Info("metrics listening", mqttsn.LogFields{"addr": ln.Addr().String()})
	}

	err := fn(ctx)
	rt.logger.Info("shutting down", nil)
	return err
}
