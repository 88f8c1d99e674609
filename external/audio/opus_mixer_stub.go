//go:build !opus

package audio

import (
	"log/slog"

	"github.com/foxseedlab/jimakun/internal/audio"
)

type noopMixer struct{}

func NewOpusMixer() audio.Mixer {
	slog.Warn("opus support not built in; voice audio is discarded (rebuild with -tags opus)")
	return &noopMixer{}
}

func (m *noopMixer) WriteOpusPacket(_ string, _ []byte) {}

func (m *noopMixer) ReadMixedFrame() (audio.RawFrame, bool) {
	return audio.RawFrame{}, false
}

func (m *noopMixer) Close() {}
