package asr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/echolot-labs/echolot/internal/audio"
)

// whisperTranscriber runs inference in process through the whisper.cpp
// bindings. Contexts are not safe for concurrent Process calls, so a
// mutex serializes inference; this is the backend's own thread-safety
// contract, requests that use other backends are unaffected.
type whisperTranscriber struct {
	model whisper.Model
	wctx  whisper.Context
	mu    sync.Mutex
}

func NewWhisperTranscriber(modelPath, language string) (Transcriber, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", modelPath, err)
	}
	wctx, err := model.NewContext()
	if err != nil {
		model.Close()
		return nil, fmt.Errorf("create whisper context: %w", err)
	}
	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		model.Close()
		return nil, fmt.Errorf("set whisper language %q: %w", language, err)
	}
	wctx.SetTranslate(false)
	return &whisperTranscriber{model: model, wctx: wctx}, nil
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, wf audio.Waveform) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var result strings.Builder
	segmentCallback := func(segment whisper.Segment) {
		result.WriteString(segment.Text)
	}
	if err := t.wctx.Process(wf.Samples, nil, segmentCallback, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	text := strings.TrimSpace(result.String())
	if text == "[BLANK_AUDIO]" {
		return "", nil
	}
	return text, nil
}

func (t *whisperTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Close()
}
