package capture

import (
	"context"

	"github.com/foxseedlab/jimakun/internal/audio"
)

// Constraints is what the engine asks of a device. SampleRate and
// ChannelCount are hints; the delivered frames carry the negotiated format.
type Constraints struct {
	DeviceID         string
	SampleRate       int
	ChannelCount     int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Handler receives asynchronous device events.
type Handler struct {
	OnFrame func(audio.RawFrame)
	OnError func(error)
}

// Driver owns the long-lived audio context a stream is opened from.
type Driver interface {
	Init() error
	Open(ctx context.Context, c Constraints, h Handler) (Stream, error)
	Terminate() error
}

// Stream is one open capture device. Once Close returns the handler is
// never invoked again.
type Stream interface {
	Pause() error
	Resume() error
	Close() error
}

type DeviceInfo struct {
	ID                string
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// DeviceLister is implemented by drivers that can enumerate inputs.
type DeviceLister interface {
	Devices() ([]DeviceInfo, error)
}

// Recorder is an optional diagnostic sink for raw frames. Record runs on the
// device callback and must not block on I/O.
type Recorder interface {
	Record(frame audio.RawFrame)
	Close() error
}
