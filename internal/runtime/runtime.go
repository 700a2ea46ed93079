package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/echolot-labs/echolot/internal/asr"
	"github.com/echolot-labs/echolot/internal/audio"
	"github.com/echolot-labs/echolot/internal/bus"
	"github.com/echolot-labs/echolot/internal/config"
	"github.com/echolot-labs/echolot/internal/httpapi"
	"github.com/echolot-labs/echolot/internal/journal"
	"github.com/echolot-labs/echolot/internal/keyword"
	"github.com/echolot-labs/echolot/internal/natsserver"
	"github.com/echolot-labs/echolot/internal/pipeline"
)

// Runtime assembles the service: telemetry, optional bus, keyword
// index, journal, transcription engine and the HTTP surface. Start
// blocks until the context is cancelled, then shuts everything down in
// reverse order.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	var publisher pipeline.Publisher
	if r.cfg.Bus.Enabled {
		busCfg := r.cfg.Bus
		if busCfg.Embedded {
			busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
		}
		client, err := bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer client.Close()
		publisher = client
	}

	keywords := keyword.NewHolder(r.cfg.Keywords.Path, r.logger)

	jnl, err := journal.Open(ctx, r.cfg.Journal, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() {
		if err := jnl.Close(); err != nil {
			r.logger.Error("journal close error", slog.String("error", err.Error()))
		}
	}()
	if err := jnl.Prune(ctx); err != nil {
		r.logger.Warn("journal prune failed", slog.String("error", err.Error()))
	}

	engine, err := asr.NewEngineFromConfig(r.cfg.ASR, r.logger)
	if err != nil {
		return fmt.Errorf("failed to configure transcription engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			r.logger.Error("engine close error", slog.String("error", err.Error()))
		}
	}()
	if r.cfg.ASR.WarmOnBoot {
		// Model load can take a while; requests arriving before it
		// finishes block on the engine's init lock instead of failing.
		go engine.Warm()
	}

	norm := audio.NewNormalizer(r.cfg.Upload, r.cfg.ASR.SampleRate, r.logger)
	orch := pipeline.New(norm, engine, keywords, jnl, publisher, r.logger)
	api := httpapi.New(orch, engine, keywords, jnl, r.cfg.Upload.MaxFileSizeBytes(), r.logger)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if metricsHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("asr_mode", r.cfg.ASR.Mode),
		slog.String("model", r.cfg.ASR.Model),
		slog.Int("keywords", keywords.Index().Len()))

	<-ctx.Done()
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}
