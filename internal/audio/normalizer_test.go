package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/echolot-labs/echolot/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newNormalizer() *Normalizer {
	return NewNormalizer(config.UploadConfig{
		MaxFileSizeMB:     25,
		AllowedExtensions: []string{".wav", ".mp3"},
	}, 16000, newLogger())
}

func TestValidateMetaRejectsUnknownExtension(t *testing.T) {
	n := newNormalizer()
	for _, name := range []string{"audio.txt", "audio", "audio.wav.exe"} {
		if err := n.ValidateMeta(name, 100); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestValidateMetaAcceptsCaseInsensitive(t *testing.T) {
	n := newNormalizer()
	for _, name := range []string{"a.wav", "a.WAV", "a.Mp3"} {
		if err := n.ValidateMeta(name, 100); err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestValidateMetaRejectsOversize(t *testing.T) {
	n := newNormalizer()
	if err := n.ValidateMeta("a.wav", 26*1024*1024); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	// Exactly at the ceiling is still allowed.
	if err := n.ValidateMeta("a.wav", 25*1024*1024); err != nil {
		t.Fatalf("unexpected error at ceiling: %v", err)
	}
}

func sineWaveform(rate int, seconds float64) Waveform {
	count := int(float64(rate) * seconds)
	samples := make([]float32, count)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return Waveform{Samples: samples, SampleRate: rate}
}

func encodeWavFile(t *testing.T, wf Waveform) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := EncodeWav(f, wf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return data
}

func TestDecodeWavInProcess(t *testing.T) {
	n := newNormalizer()
	data := encodeWavFile(t, sineWaveform(16000, 0.25))

	wf, err := n.Decode(context.Background(), data, "clip.wav")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wf.SampleRate != 16000 {
		t.Fatalf("expected 16 kHz, got %d", wf.SampleRate)
	}
	if len(wf.Samples) != 4000 {
		t.Fatalf("expected 4000 samples, got %d", len(wf.Samples))
	}
}

func TestDecodeProbesContentNotExtension(t *testing.T) {
	// A .mp3-named upload carrying wav data must still decode.
	n := newNormalizer()
	data := encodeWavFile(t, sineWaveform(16000, 0.1))

	wf, err := n.Decode(context.Background(), data, "clip.mp3")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(wf.Samples) == 0 {
		t.Fatal("expected samples")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	n := newNormalizer()
	_, err := n.Decode(context.Background(), []byte("definitely not audio"), "clip.wav")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	n := newNormalizer()
	if _, err := n.Decode(context.Background(), nil, "clip.wav"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeResamplesViaFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	n := newNormalizer()
	// 44.1 kHz wav cannot take the in-process path.
	data := encodeWavFile(t, sineWaveform(44100, 0.25))

	wf, err := n.Decode(context.Background(), data, "clip.wav")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wf.SampleRate != 16000 {
		t.Fatalf("expected resample to 16 kHz, got %d", wf.SampleRate)
	}
	if len(wf.Samples) == 0 {
		t.Fatal("expected samples")
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999, -1}
	data := Float32ToPCM16(samples)
	back, err := PCM16ToFloat32(data)
	if err != nil {
		t.Fatalf("convert back: %v", err)
	}
	for i := range samples {
		if math.Abs(float64(back[i]-samples[i])) > 0.001 {
			t.Fatalf("sample %d: %f != %f", i, back[i], samples[i])
		}
	}
}

func TestPCM16RejectsOddLength(t *testing.T) {
	if _, err := PCM16ToFloat32([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected error for odd payload")
	}
}

func TestIsRIFFWave(t *testing.T) {
	if isRIFFWave([]byte("RIFF1234WAVE")) != true {
		t.Fatal("expected RIFF/WAVE detection")
	}
	if isRIFFWave([]byte("ID3 junk")) {
		t.Fatal("did not expect RIFF detection")
	}
	if isRIFFWave(bytes.Repeat([]byte{0}, 4)) {
		t.Fatal("short payload should not match")
	}
}
