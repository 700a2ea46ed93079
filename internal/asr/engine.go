package asr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/echolot-labs/echolot/internal/audio"
	"github.com/echolot-labs/echolot/internal/config"
)

// ErrUnavailable marks transcription failures caused by the backend not
// being initialized rather than by the request itself.
var ErrUnavailable = errors.New("transcription backend unavailable")

// Engine wraps a Transcriber behind a single-flight initializer. The
// first caller pays the model load; concurrent callers wait on the same
// attempt. A failed load is not cached, so the next request re-attempts
// instead of wedging the process in a dead state.
type Engine struct {
	cfg     config.ASRConfig
	factory Factory
	log     *slog.Logger

	mu      sync.Mutex
	backend Transcriber
	ready   atomic.Bool
}

func NewEngine(cfg config.ASRConfig, factory Factory, log *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		factory: factory,
		log:     log.With(slog.String("component", "asr-engine")),
	}
}

// NewEngineFromConfig selects the backend factory for the configured mode.
func NewEngineFromConfig(cfg config.ASRConfig, log *slog.Logger) (*Engine, error) {
	var factory Factory
	switch cfg.Mode {
	case "mock":
		factory = func() (Transcriber, error) { return NewMockTranscriber(), nil }
	case "exec":
		factory = func() (Transcriber, error) { return NewExecTranscriber(cfg) }
	case "whisper":
		factory = func() (Transcriber, error) { return NewWhisperTranscriber(cfg.ModelPath, cfg.Language) }
	default:
		return nil, fmt.Errorf("unknown asr mode %q", cfg.Mode)
	}
	return NewEngine(cfg, factory, log), nil
}

// Warm attempts eager initialization without failing startup. A load
// failure only degrades health; the first transcription re-attempts.
func (e *Engine) Warm() {
	if _, err := e.get(); err != nil {
		e.log.Error("model warm-up failed", slog.String("model", e.cfg.Model), slog.String("error", err.Error()))
		return
	}
	e.log.Info("model ready", slog.String("model", e.cfg.Model), slog.String("device", e.cfg.Device))
}

// Ready reports whether the backend finished initializing.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Model returns the configured model identifier for health reporting.
func (e *Engine) Model() string {
	return e.cfg.Model
}

// Device returns the configured compute device for health reporting.
func (e *Engine) Device() string {
	return e.cfg.Device
}

// Transcribe runs the waveform through the backend. The init lock is
// released before inference, so one slow transcription never serializes
// unrelated requests; only a backend that is not internally thread-safe
// may serialize itself.
func (e *Engine) Transcribe(ctx context.Context, wf audio.Waveform) (string, error) {
	backend, err := e.get()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	text, err := backend.Transcribe(ctx, wf)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *Engine) get() (Transcriber, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend != nil {
		return e.backend, nil
	}
	e.log.Info("initializing asr backend", slog.String("mode", e.cfg.Mode), slog.String("model", e.cfg.Model))
	backend, err := e.factory()
	if err != nil {
		return nil, err
	}
	e.backend = backend
	e.ready.Store(true)
	return backend, nil
}

// Close releases the backend if it was ever initialized.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	e.ready.Store(false)
	return err
}
