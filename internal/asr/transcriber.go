package asr

import (
	"context"

	"github.com/echolot-labs/echolot/internal/audio"
)

// Transcriber abstracts ASR backends. Implementations return best-effort
// transcript text; an empty string for silent or unintelligible audio is
// a valid result, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, wf audio.Waveform) (string, error)
	Close() error
}

// Factory builds a backend. Construction is expected to be expensive
// (model load on the order of seconds) and is invoked at most once
// concurrently by the Engine.
type Factory func() (Transcriber, error)
