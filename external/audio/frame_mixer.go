package audio

import (
	"github.com/foxseedlab/jimakun/internal/audio"
)

const (
	sampleRate      = 48000
	channels        = 2
	frameSizeMs     = 20
	samplesPerFrame = sampleRate * frameSizeMs * channels / 1000
	// about one second of backlog per speaker
	maxQueuedFrames = 50
)

type frameQueue struct {
	frames [][]float32
}

// push appends a frame and drops the oldest when the backlog is full.
func (q *frameQueue) push(frame []float32) bool {
	dropped := false
	if len(q.frames) >= maxQueuedFrames {
		q.frames = q.frames[1:]
		dropped = true
	}
	q.frames = append(q.frames, frame)
	return dropped
}

func (q *frameQueue) pop() ([]float32, bool) {
	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

func (q *frameQueue) hasFrame() bool {
	return len(q.frames) > 0
}

// frameMixer sums one queued 20 ms frame per speaker. Not safe for
// concurrent use; callers hold their own lock.
type frameMixer struct {
	queues map[string]*frameQueue
}

func newFrameMixer() *frameMixer {
	return &frameMixer{queues: make(map[string]*frameQueue)}
}

func (m *frameMixer) push(speakerID string, frame []float32) bool {
	q, ok := m.queues[speakerID]
	if !ok {
		q = &frameQueue{}
		m.queues[speakerID] = q
	}
	return q.push(frame)
}

func (m *frameMixer) mix() (audio.RawFrame, bool) {
	if !hasQueuedFrames(m.queues) {
		return audio.RawFrame{}, false
	}
	mixed := make([]float32, samplesPerFrame)
	for _, q := range m.queues {
		frame, ok := q.pop()
		if !ok {
			continue
		}
		for i := 0; i < len(frame) && i < samplesPerFrame; i++ {
			mixed[i] = clampSample(mixed[i] + frame[i])
		}
	}
	return audio.RawFrame{Samples: mixed, SampleRate: sampleRate, Channels: channels}, true
}

func hasQueuedFrames(queues map[string]*frameQueue) bool {
	for _, q := range queues {
		if q.hasFrame() {
			return true
		}
	}
	return false
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
