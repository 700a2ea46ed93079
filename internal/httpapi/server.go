package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/echolot-labs/echolot/internal/journal"
	"github.com/echolot-labs/echolot/internal/keyword"
	"github.com/echolot-labs/echolot/internal/pipeline"
)

// Pipeline is the transcription entry point the handlers call.
type Pipeline interface {
	Precheck(filename string, declaredSize int64) *pipeline.Error
	Handle(ctx context.Context, up pipeline.Upload) (pipeline.Result, *pipeline.Error)
}

// EngineStatus reports transcription backend health.
type EngineStatus interface {
	Ready() bool
	Model() string
	Device() string
}

// Keywords exposes the shared index and its reload path.
type Keywords interface {
	Index() *keyword.Index
	Reload() error
}

// API holds the HTTP handlers for the service surface.
type API struct {
	pipeline Pipeline
	engine   EngineStatus
	keywords Keywords
	journal  *journal.Journal
	maxBytes int64
	log      *slog.Logger
}

func New(p Pipeline, engine EngineStatus, keywords Keywords, j *journal.Journal, maxBytes int64, log *slog.Logger) *API {
	return &API{
		pipeline: p,
		engine:   engine,
		keywords: keywords,
		journal:  j,
		maxBytes: maxBytes,
		log:      log.With(slog.String("component", "httpapi")),
	}
}

// Routes builds the service mux. CORS is applied to every route so the
// browser UI can call the API from another origin.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /keywords", a.handleKeywords)
	mux.HandleFunc("POST /keywords/reload", a.handleKeywordReload)
	mux.HandleFunc("POST /transcribe", a.handleTranscribe)
	mux.HandleFunc("GET /stats", a.handleStats)
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Device string `json:"device"`
}

type keywordsResponse struct {
	Keywords []string `json:"keywords"`
}

type transcribeResponse struct {
	Text     string             `json:"text"`
	Keywords []string           `json:"keywords"`
	Timings  map[string]float64 `json:"timings"`
}

type statsResponse struct {
	Summary journal.Summary `json:"summary"`
	Recent  []journal.Entry `json:"recent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth always answers, even when the model never loaded; a
// degraded status still means the process is reachable.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if !a.engine.Ready() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status: status,
		Model:  a.engine.Model(),
		Device: a.engine.Device(),
	})
}

func (a *API) handleKeywords(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, keywordsResponse{Keywords: a.keywords.Index().All()})
}

func (a *API) handleKeywordReload(w http.ResponseWriter, _ *http.Request) {
	if err := a.keywords.Reload(); err != nil {
		a.log.Error("keyword reload failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Keyword reload failed"})
		return
	}
	writeJSON(w, http.StatusOK, keywordsResponse{Keywords: a.keywords.Index().All()})
}

func (a *API) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	// Slack above the ceiling covers multipart framing overhead; the
	// exact payload limit is enforced against the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		// A body past the reader cap surfaces here as a MaxBytesError
		// mid-parse; that is a size rejection, not a missing field.
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: pipeline.ReasonTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: pipeline.ReasonNoFile})
		return
	}
	defer file.Close()

	// Extension and declared size are checked before the payload is
	// read, so obviously bad requests stay cheap.
	if perr := a.pipeline.Precheck(header.Filename, header.Size); perr != nil {
		a.writeError(w, perr)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		a.log.Error("failed to read upload", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: pipeline.ReasonInternal})
		return
	}

	res, perr := a.pipeline.Handle(r.Context(), pipeline.Upload{
		Filename: header.Filename,
		Size:     int64(len(data)),
		Data:     data,
	})
	if perr != nil {
		a.writeError(w, perr)
		return
	}

	keywords := res.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	writeJSON(w, http.StatusOK, transcribeResponse{
		Text:     res.Text,
		Keywords: keywords,
		Timings:  res.Timings.Seconds(),
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	sum, err := a.journal.Summarize(r.Context())
	if err != nil {
		a.log.Error("failed to summarize journal", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: pipeline.ReasonInternal})
		return
	}
	recent, err := a.journal.Recent(r.Context(), 20)
	if err != nil {
		a.log.Error("failed to read journal", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: pipeline.ReasonInternal})
		return
	}
	if recent == nil {
		recent = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, statsResponse{Summary: sum, Recent: recent})
}

func (a *API) writeError(w http.ResponseWriter, perr *pipeline.Error) {
	writeJSON(w, pipeline.StatusCode(perr.Kind), errorResponse{Error: perr.Reason})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
