package vad

import (
	"math"

	"github.com/foxseedlab/jimakun/internal/audio"
)

const (
	DefaultEnergyThreshold = 0.002
	DefaultMinSilenceMs    = 500
	DefaultMinSpeechMs     = 1000
	DefaultMaxSpeechMs     = 10000
)

type Event int

const (
	EventNone Event = iota
	EventSpeechStart
	EventSilence
)

func (e Event) String() string {
	switch e {
	case EventSpeechStart:
		return "speech_start"
	case EventSilence:
		return "silence"
	default:
		return "none"
	}
}

// Energy returns the RMS level of the samples on a [-1, 1] scale.
func Energy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range audio.FromInt16(samples) {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Config mirrors the energy VAD settings. Zero values take the defaults.
type Config struct {
	Threshold    float64
	MinSilenceMs int64
	// utterances shorter than this end without a silence event
	MinSpeechMs int64
	// continuous speech is sliced with a silence event at this length
	MaxSpeechMs int64
}

// Tracker turns a chunk stream into utterance boundaries. Not safe for
// concurrent use; the pipeline pump owns it.
type Tracker struct {
	cfg Config

	inSpeech  bool
	sliced    bool
	speechMs  int64
	silenceMs int64
}

func NewTracker(cfg Config) *Tracker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultEnergyThreshold
	}
	if cfg.MinSilenceMs <= 0 {
		cfg.MinSilenceMs = DefaultMinSilenceMs
	}
	if cfg.MinSpeechMs <= 0 {
		cfg.MinSpeechMs = DefaultMinSpeechMs
	}
	if cfg.MaxSpeechMs <= 0 {
		cfg.MaxSpeechMs = DefaultMaxSpeechMs
	}
	return &Tracker{cfg: cfg}
}

func (t *Tracker) Observe(chunk audio.Chunk) Event {
	ms := chunk.DurationMs()
	if Energy(chunk.Samples) > t.cfg.Threshold {
		if !t.inSpeech {
			t.inSpeech = true
			t.speechMs = ms
			return EventSpeechStart
		}
		// a pause shorter than MinSilenceMs belongs to the utterance
		t.speechMs += t.silenceMs + ms
		t.silenceMs = 0
		if t.speechMs >= t.cfg.MaxSpeechMs {
			t.speechMs = 0
			t.sliced = true
			return EventSilence
		}
		return EventNone
	}
	if !t.inSpeech {
		return EventNone
	}
	t.silenceMs += ms
	if t.silenceMs < t.cfg.MinSilenceMs {
		return EventNone
	}
	spoken, sliced := t.speechMs, t.sliced
	t.inSpeech = false
	t.sliced = false
	t.speechMs = 0
	t.silenceMs = 0
	// the tail of a sliced utterance still ends it
	if spoken < t.cfg.MinSpeechMs && !sliced {
		return EventNone
	}
	return EventSilence
}

func (t *Tracker) InSpeech() bool {
	return t.inSpeech
}
