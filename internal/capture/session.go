package capture

import "time"

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

const (
	DefaultSampleRate   = 48000
	DefaultChannelCount = 1
	DefaultQueueSize    = 64
)

type Config struct {
	DeviceID     string
	SampleRate   int
	ChannelCount int
	QueueSize    int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ChannelCount <= 0 {
		c.ChannelCount = DefaultChannelCount
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Session describes one capture lifetime.
type Session struct {
	ID        string
	Status    Status
	Config    Config
	StartTime time.Time
}

type Stats struct {
	EmittedChunks int64
	DroppedChunks int64
	IgnoredFrames int64
}
