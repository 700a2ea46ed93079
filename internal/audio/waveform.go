package audio

import "time"

// Waveform is canonical decoded audio: mono float32 samples in [-1, 1]
// at the sample rate the transcription engine expects. It is owned by a
// single request and discarded once transcription finishes.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}
