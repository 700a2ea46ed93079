package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/echolot-labs/echolot/internal/config"
)

// Sentinel errors the pipeline maps onto its taxonomy.
var (
	ErrUnsupportedFormat = errors.New("unsupported file extension")
	ErrPayloadTooLarge   = errors.New("file too large")
	ErrDecode            = errors.New("audio decode failed")
)

// Normalizer validates upload metadata and turns supported containers
// into the canonical waveform. Content is probed, never trusted by
// extension: a .mp3-named file carrying RIFF data still decodes.
type Normalizer struct {
	upload     config.UploadConfig
	sampleRate int
	log        *slog.Logger
}

func NewNormalizer(upload config.UploadConfig, sampleRate int, log *slog.Logger) *Normalizer {
	return &Normalizer{
		upload:     upload,
		sampleRate: sampleRate,
		log:        log.With(slog.String("component", "audio-normalizer")),
	}
}

// ValidateMeta checks filename extension and declared size before any
// bytes are decoded, so obviously bad requests are rejected cheaply.
func (n *Normalizer) ValidateMeta(filename string, declaredSize int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || !n.extAllowed(ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if declaredSize > n.upload.MaxFileSizeBytes() {
		return fmt.Errorf("%w: %d bytes exceeds %d MB limit", ErrPayloadTooLarge, declaredSize, n.upload.MaxFileSizeMB)
	}
	return nil
}

func (n *Normalizer) extAllowed(ext string) bool {
	for _, allowed := range n.upload.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// Decode produces the canonical waveform from the uploaded bytes.
// RIFF/WAVE payloads that already match the target rate decode in
// process; everything else goes through ffmpeg, which probes the
// container itself. All scratch files are removed before return.
func (n *Normalizer) Decode(ctx context.Context, data []byte, filename string) (Waveform, error) {
	if len(data) == 0 {
		return Waveform{}, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	if isRIFFWave(data) {
		wf, err := n.decodeWav(data)
		if err == nil {
			return wf, nil
		}
		n.log.Debug("in-process wav decode failed, falling back to ffmpeg", slog.String("error", err.Error()))
	}

	return n.decodeFFmpeg(ctx, data, filename)
}

func isRIFFWave(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

func (n *Normalizer) decodeWav(data []byte) (Waveform, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Waveform{}, fmt.Errorf("not a valid wav stream")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels != 1 || buf.Format.SampleRate != n.sampleRate {
		return Waveform{}, fmt.Errorf("wav is not %d Hz mono", n.sampleRate)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return Waveform{Samples: samples, SampleRate: n.sampleRate}, nil
}

func (n *Normalizer) decodeFFmpeg(ctx context.Context, data []byte, filename string) (Waveform, error) {
	tmpDir, err := os.MkdirTemp("", "echolot_upload_*")
	if err != nil {
		return Waveform{}, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	inPath := filepath.Join(tmpDir, "upload"+ext)
	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return Waveform{}, fmt.Errorf("write upload: %w", err)
	}

	// ffmpeg -i input -f s16le -acodec pcm_s16le -ac 1 -ar <rate> -
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1", "-ar", strconv.Itoa(n.sampleRate),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Waveform{}, fmt.Errorf("ffmpeg not available: %w", err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Waveform{}, fmt.Errorf("%w: %s", ErrDecode, msg)
	}

	samples, err := PCM16ToFloat32(stdout.Bytes())
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %s", ErrDecode, err.Error())
	}
	if len(samples) == 0 {
		return Waveform{}, fmt.Errorf("%w: no audio stream", ErrDecode)
	}
	return Waveform{Samples: samples, SampleRate: n.sampleRate}, nil
}
