package asr

import (
	"context"
	"fmt"
	"time"

	"github.com/echolot-labs/echolot/internal/audio"
)

type mockTranscriber struct{}

// NewMockTranscriber returns a backend that describes the audio instead
// of recognizing it. Useful for development and smoke tests without a
// model on disk.
func NewMockTranscriber() Transcriber {
	return &mockTranscriber{}
}

func (m *mockTranscriber) Transcribe(_ context.Context, wf audio.Waveform) (string, error) {
	return fmt.Sprintf("[mock transcript duration=%s samples=%d]", wf.Duration().Round(time.Millisecond), len(wf.Samples)), nil
}

func (m *mockTranscriber) Close() error { return nil }
