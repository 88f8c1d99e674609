package recorder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/foxseedlab/jimakun/internal/audio"
	"github.com/foxseedlab/jimakun/internal/capture"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth    = 16
	wavFormatPCM   = 1
	defaultMaxTime = 10 * time.Minute
)

var ErrNoAudio = errors.New("no audio recorded")

// WAVRecorder keeps raw capture frames in memory as 16-bit samples at the
// device's native rate and channel count and writes them as a PCM WAV file
// on Close. Audio past maxTime is dropped.
type WAVRecorder struct {
	path    string
	maxTime time.Duration

	mu         sync.Mutex
	samples    []int16
	sampleRate int
	channels   int
	skipped    int64
	full       bool
	closed     bool
}

var _ capture.Recorder = (*WAVRecorder)(nil)

// NewWAVRecorder records to path. An empty path keeps audio for Export only.
func NewWAVRecorder(path string, maxTime time.Duration) *WAVRecorder {
	if maxTime <= 0 {
		maxTime = defaultMaxTime
	}
	return &WAVRecorder{path: path, maxTime: maxTime}
}

func (r *WAVRecorder) Record(frame audio.RawFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.full || len(frame.Samples) == 0 {
		return
	}
	if r.sampleRate == 0 {
		r.sampleRate = frame.SampleRate
		r.channels = frame.Channels
	}
	if frame.SampleRate != r.sampleRate || frame.Channels != r.channels {
		if r.skipped == 0 {
			slog.Warn("debug recorder skipping frame with changed format",
				"sample_rate", frame.SampleRate, "channels", frame.Channels,
				"recorded_sample_rate", r.sampleRate, "recorded_channels", r.channels)
		}
		r.skipped++
		return
	}
	if len(r.samples)+len(frame.Samples) > r.limitLocked() {
		r.full = true
		slog.Warn("debug recorder reached max duration; further audio is not kept", "max_duration", r.maxTime.String())
		return
	}
	if r.samples == nil {
		// One minute up front; append grows it from there.
		r.samples = make([]int16, 0, min(r.limitLocked(), 60*r.sampleRate*r.channels))
	}
	r.samples = append(r.samples, audio.Quantize(frame.Samples)...)
}

func (r *WAVRecorder) limitLocked() int {
	return int(r.maxTime.Seconds()) * r.sampleRate * r.channels
}

// Export writes the recorded audio as a WAV container.
func (r *WAVRecorder) Export(w io.WriteSeeker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exportLocked(w)
}

func (r *WAVRecorder) exportLocked(w io.WriteSeeker) error {
	if len(r.samples) == 0 {
		return ErrNoAudio
	}
	enc := wav.NewEncoder(w, r.sampleRate, wavBitDepth, r.channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: r.channels,
			SampleRate:  r.sampleRate,
		},
		Data:           make([]int, 0, r.sampleRate*r.channels),
		SourceBitDepth: wavBitDepth,
	}
	// Encode one second per Write.
	for rest := r.samples; len(rest) > 0; {
		n := min(len(rest), cap(buf.Data))
		buf.Data = buf.Data[:n]
		for i, s := range rest[:n] {
			buf.Data[i] = int(s)
		}
		if err := enc.Write(buf); err != nil {
			_ = enc.Close()
			return fmt.Errorf("encode wav: %w", err)
		}
		rest = rest[n:]
	}
	return enc.Close()
}

// Close writes the file if a path was configured. Further frames are ignored.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	defer func() { r.samples = nil }()
	if r.path == "" || len(r.samples) == 0 {
		return nil
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("create debug wav: %w", err)
	}
	if err := r.exportLocked(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("debug wav written", "path", r.path, "samples", len(r.samples), "sample_rate", r.sampleRate, "channels", r.channels)
	return nil
}
