//go:build opus

package audio

import (
	"log/slog"
	"sync"

	"github.com/foxseedlab/jimakun/internal/audio"
	"github.com/hraban/opus"
)

// OpusMixer decodes per-speaker opus packets and mixes them into 48 kHz
// stereo float frames.
type OpusMixer struct {
	mu       sync.Mutex
	decoders map[string]*opus.Decoder
	frames   *frameMixer
	closed   bool
	dropped  int64
}

func NewOpusMixer() audio.Mixer {
	return &OpusMixer{
		decoders: make(map[string]*opus.Decoder),
		frames:   newFrameMixer(),
	}
}

func (m *OpusMixer) WriteOpusPacket(speakerID string, opusData []byte) {
	if len(opusData) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	dec, ok := m.decoders[speakerID]
	if !ok {
		var err error
		dec, err = opus.NewDecoder(sampleRate, channels)
		if err != nil {
			slog.Warn("failed to create opus decoder", "error", err, "speaker_id", speakerID)
			return
		}
		m.decoders[speakerID] = dec
	}
	pcm := make([]float32, samplesPerFrame)
	n, err := dec.DecodeFloat32(opusData, pcm)
	if err != nil {
		slog.Debug("failed to decode opus packet", "error", err, "speaker_id", speakerID)
		return
	}
	if n <= 0 {
		return
	}
	total := min(n*channels, samplesPerFrame)
	if m.frames.push(speakerID, pcm[:total]) {
		m.dropped++
		if m.dropped == 1 || m.dropped%500 == 0 {
			slog.Warn("speaker backlog full; dropping oldest frame", "speaker_id", speakerID, "dropped_frames", m.dropped)
		}
	}
}

func (m *OpusMixer) ReadMixedFrame() (audio.RawFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return audio.RawFrame{}, false
	}
	return m.frames.mix()
}

func (m *OpusMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.decoders = nil
	m.frames = nil
}
