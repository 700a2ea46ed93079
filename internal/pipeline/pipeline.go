package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/echolot-labs/echolot/internal/asr"
	"github.com/echolot-labs/echolot/internal/audio"
	"github.com/echolot-labs/echolot/internal/keyword"
)

// Upload is the raw request payload handed to the orchestrator. It is
// owned by a single request and discarded when the request completes.
type Upload struct {
	Filename string
	Size     int64
	Data     []byte
}

// Timings records per-stage wall-clock durations. Total spans the whole
// request including overhead between stages, so it is always at least
// the sum of the named stages.
type Timings struct {
	Conversion time.Duration
	ASR        time.Duration
	Keyword    time.Duration
	Total      time.Duration
}

// Seconds renders the timings as the wire format: seconds rounded to
// millisecond precision.
func (t Timings) Seconds() map[string]float64 {
	return map[string]float64{
		"conversion_sec": roundMillis(t.Conversion),
		"asr_sec":        roundMillis(t.ASR),
		"keyword_sec":    roundMillis(t.Keyword),
		"total_sec":      roundMillis(t.Total),
	}
}

func roundMillis(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// Result is the assembled transcription response.
type Result struct {
	Text     string
	Keywords []string
	Timings  Timings
}

// Normalizer validates and decodes uploads.
type Normalizer interface {
	ValidateMeta(filename string, declaredSize int64) error
	Decode(ctx context.Context, data []byte, filename string) (audio.Waveform, error)
}

// Engine invokes the transcription backend.
type Engine interface {
	Transcribe(ctx context.Context, wf audio.Waveform) (string, error)
}

// IndexSource yields the current keyword index.
type IndexSource interface {
	Index() *keyword.Index
}

// Recorder persists per-request outcomes. Implementations must not
// store audio bytes or transcript text.
type Recorder interface {
	Record(ctx context.Context, rec RequestRecord) error
}

// RequestRecord is the journal entry for one pipeline run.
type RequestRecord struct {
	Outcome      string
	Extension    string
	SizeBytes    int64
	Timings      Timings
	KeywordCount int
}

// Publisher broadcasts completed transcriptions, e.g. on a message bus.
type Publisher interface {
	PublishTranscription(ctx context.Context, res Result) error
}

// Orchestrator sequences validation, decoding, transcription and
// keyword matching for one upload, measuring each stage. Journal and
// publisher are optional side channels; nil disables them.
type Orchestrator struct {
	norm      Normalizer
	engine    Engine
	keywords  IndexSource
	journal   Recorder
	publisher Publisher
	log       *slog.Logger

	tracer       trace.Tracer
	requests     metric.Int64Counter
	stageLatency metric.Float64Histogram
}

func New(norm Normalizer, engine Engine, keywords IndexSource, journal Recorder, publisher Publisher, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		norm:      norm,
		engine:    engine,
		keywords:  keywords,
		journal:   journal,
		publisher: publisher,
		log:       log.With(slog.String("component", "pipeline")),
		tracer:    otel.Tracer("github.com/echolot-labs/echolot/pipeline"),
	}

	meter := otel.Meter("github.com/echolot-labs/echolot/pipeline")
	if counter, err := meter.Int64Counter("echolot.transcribe.requests",
		metric.WithDescription("Transcription requests by outcome")); err == nil {
		o.requests = counter
	} else {
		o.log.Warn("failed to create request counter", slog.String("error", err.Error()))
	}
	if hist, err := meter.Float64Histogram("echolot.transcribe.stage_seconds",
		metric.WithDescription("Per-stage pipeline latency in seconds")); err == nil {
		o.stageLatency = hist
	} else {
		o.log.Warn("failed to create stage histogram", slog.String("error", err.Error()))
	}

	return o
}

// Handle runs the fixed step sequence. On failure the remaining steps
// are skipped and any partially built state is discarded; temp files
// are the normalizer's responsibility and are cleaned on every path.
func (o *Orchestrator) Handle(ctx context.Context, up Upload) (Result, *Error) {
	totalStart := time.Now()
	ext := extensionOf(up.Filename)

	res, perr := o.run(ctx, up, totalStart)
	if perr != nil {
		failed := res.Timings
		failed.Total = time.Since(totalStart)
		o.observe(ctx, perr.Kind.String(), ext, up.Size, failed, 0)
		return Result{}, perr
	}

	o.observe(ctx, "ok", ext, up.Size, res.Timings, len(res.Keywords))
	if o.publisher != nil {
		if err := o.publisher.PublishTranscription(ctx, res); err != nil {
			o.log.Warn("failed to publish transcription event", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// Precheck runs the cheap metadata validation so callers can reject a
// bad upload before its payload is read from the wire.
func (o *Orchestrator) Precheck(filename string, declaredSize int64) *Error {
	if filename == "" {
		return newError(KindBadRequest, ReasonNoFile, nil)
	}
	if err := o.norm.ValidateMeta(filename, declaredSize); err != nil {
		return mapValidationError(err)
	}
	return nil
}

func mapValidationError(err error) *Error {
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return newError(KindUnsupportedFormat, ReasonBadExtension, err)
	case errors.Is(err, audio.ErrPayloadTooLarge):
		return newError(KindPayloadTooLarge, ReasonTooLarge, err)
	default:
		return newError(KindInternal, ReasonInternal, err)
	}
}

func (o *Orchestrator) run(ctx context.Context, up Upload, totalStart time.Time) (Result, *Error) {
	if perr := o.Precheck(up.Filename, up.Size); perr != nil {
		return Result{}, perr
	}

	var timings Timings

	ctx, span := o.tracer.Start(ctx, "pipeline.decode")
	convStart := time.Now()
	wf, err := o.norm.Decode(ctx, up.Data, up.Filename)
	timings.Conversion = time.Since(convStart)
	span.End()
	if err != nil {
		if errors.Is(err, audio.ErrDecode) {
			o.log.Warn("audio decode failed",
				slog.String("filename", up.Filename),
				slog.Int64("size", up.Size),
				slog.String("error", err.Error()))
			return Result{}, newError(KindDecode, ReasonDecodeFailed, err)
		}
		o.log.Error("decode stage failed", slog.String("error", err.Error()))
		return Result{}, newError(KindInternal, ReasonInternal, err)
	}

	ctx, span = o.tracer.Start(ctx, "pipeline.transcribe")
	asrStart := time.Now()
	text, err := o.engine.Transcribe(ctx, wf)
	timings.ASR = time.Since(asrStart)
	span.End()
	if err != nil {
		return Result{}, o.classifyEngineError(err)
	}

	_, span = o.tracer.Start(ctx, "pipeline.keywords")
	kwStart := time.Now()
	detected := keyword.Detect(text, o.keywords.Index())
	timings.Keyword = time.Since(kwStart)
	span.End()

	timings.Total = time.Since(totalStart)
	return Result{Text: text, Keywords: detected, Timings: timings}, nil
}

func (o *Orchestrator) classifyEngineError(err error) *Error {
	if errors.Is(err, asr.ErrUnavailable) {
		o.log.Error("transcription backend unavailable", slog.String("error", err.Error()))
		return newError(KindModelUnavailable, ReasonModelUnavailable, err)
	}
	o.log.Error("transcription failed", slog.String("error", err.Error()))
	return newError(KindInternal, ReasonInternal, err)
}

func (o *Orchestrator) observe(ctx context.Context, outcome, ext string, size int64, timings Timings, keywords int) {
	if o.journal != nil {
		if err := o.journal.Record(ctx, RequestRecord{
			Outcome:      outcome,
			Extension:    ext,
			SizeBytes:    size,
			Timings:      timings,
			KeywordCount: keywords,
		}); err != nil {
			o.log.Warn("failed to journal request", slog.String("error", err.Error()))
		}
	}
	if o.requests != nil {
		o.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if o.stageLatency != nil {
		for stage, d := range map[string]time.Duration{
			"conversion": timings.Conversion,
			"asr":        timings.ASR,
			"keyword":    timings.Keyword,
			"total":      timings.Total,
		} {
			o.stageLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
		}
	}
}

func extensionOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
