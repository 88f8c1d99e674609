package vad

import (
	"math"
	"testing"

	"github.com/foxseedlab/jimakun/internal/audio"
)

func chunkOf(level int16, ms int) audio.Chunk {
	samples := make([]int16, 16*ms)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = level
		} else {
			samples[i] = -level
		}
	}
	return audio.Chunk{Samples: samples, SampleRate: audio.TargetSampleRate}
}

func TestEnergy(t *testing.T) {
	if Energy(nil) != 0 {
		t.Fatal("expected zero energy for empty input")
	}
	if Energy(make([]int16, 160)) != 0 {
		t.Fatal("expected zero energy for silence")
	}
	got := Energy([]int16{16384, -16384})
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestTracker_SilenceOncePerUtterance(t *testing.T) {
	tr := NewTracker(Config{MinSpeechMs: 100})
	loud := chunkOf(8000, 100)
	quiet := chunkOf(0, 100)

	if ev := tr.Observe(quiet); ev != EventNone {
		t.Fatalf("expected no event before speech, got %s", ev)
	}
	if ev := tr.Observe(loud); ev != EventSpeechStart {
		t.Fatalf("expected speech start, got %s", ev)
	}
	if ev := tr.Observe(loud); ev != EventNone {
		t.Fatalf("expected a single speech start, got %s", ev)
	}

	var events []Event
	for i := 0; i < 10; i++ {
		if ev := tr.Observe(quiet); ev != EventNone {
			events = append(events, ev)
		}
	}
	if len(events) != 1 || events[0] != EventSilence {
		t.Fatalf("expected exactly one silence event, got %v", events)
	}
	if tr.InSpeech() {
		t.Fatal("expected tracker to leave speech after silence")
	}
}

func TestTracker_ShortPauseDoesNotEndUtterance(t *testing.T) {
	tr := NewTracker(Config{MinSilenceMs: 500, MinSpeechMs: 100})
	loud := chunkOf(8000, 100)
	quiet := chunkOf(10, 100)

	tr.Observe(loud)
	for i := 0; i < 4; i++ {
		if ev := tr.Observe(quiet); ev != EventNone {
			t.Fatalf("pause of %dms ended the utterance", (i+1)*100)
		}
	}
	if ev := tr.Observe(loud); ev != EventNone {
		t.Fatalf("expected speech to continue, got %s", ev)
	}
	for i := 0; i < 4; i++ {
		tr.Observe(quiet)
	}
	if ev := tr.Observe(quiet); ev != EventSilence {
		t.Fatalf("expected silence after 500ms, got %s", ev)
	}
}

func TestTracker_ThresholdIsExclusive(t *testing.T) {
	level := int16(16384)
	tr := NewTracker(Config{Threshold: Energy([]int16{level, -level}), MinSpeechMs: 100})
	if ev := tr.Observe(chunkOf(level, 100)); ev != EventNone {
		t.Fatalf("energy equal to the threshold is not speech, got %s", ev)
	}
	if ev := tr.Observe(chunkOf(level+1, 100)); ev != EventSpeechStart {
		t.Fatalf("expected speech above the threshold, got %s", ev)
	}
}

func TestTracker_ShortBurstEndsWithoutSilenceEvent(t *testing.T) {
	tr := NewTracker(Config{})
	loud := chunkOf(8000, 100)
	quiet := chunkOf(0, 100)

	if ev := tr.Observe(loud); ev != EventSpeechStart {
		t.Fatalf("expected speech start, got %s", ev)
	}
	for i := 0; i < 10; i++ {
		if ev := tr.Observe(quiet); ev != EventNone {
			t.Fatalf("a %dms click must not report silence, got %s", 100, ev)
		}
	}
	if tr.InSpeech() {
		t.Fatal("expected the burst to be discarded")
	}
}

func TestTracker_PausesCountTowardsMinSpeech(t *testing.T) {
	tr := NewTracker(Config{MinSilenceMs: 500, MinSpeechMs: 1000})
	loud := chunkOf(8000, 100)
	quiet := chunkOf(0, 100)

	// 400ms speech, 300ms pause, 400ms speech
	for i := 0; i < 4; i++ {
		tr.Observe(loud)
	}
	for i := 0; i < 3; i++ {
		tr.Observe(quiet)
	}
	for i := 0; i < 4; i++ {
		tr.Observe(loud)
	}
	var got Event
	for i := 0; i < 5; i++ {
		got = tr.Observe(quiet)
	}
	if got != EventSilence {
		t.Fatalf("expected an 1100ms utterance to report silence, got %s", got)
	}
}

func TestTracker_MaxSpeechSlicesContinuousSpeech(t *testing.T) {
	tr := NewTracker(Config{MinSpeechMs: 1000, MaxSpeechMs: 1000})
	loud := chunkOf(8000, 100)
	quiet := chunkOf(0, 100)

	var slices int
	for i := 0; i < 25; i++ {
		if tr.Observe(loud) == EventSilence {
			slices++
		}
	}
	if slices != 2 {
		t.Fatalf("expected 2 forced slices in 2.5s of speech, got %d", slices)
	}
	if !tr.InSpeech() {
		t.Fatal("expected a forced slice to keep the utterance open")
	}

	// the 500ms tail is shorter than MinSpeechMs but still ends the utterance
	var got Event
	for i := 0; i < 5; i++ {
		got = tr.Observe(quiet)
	}
	if got != EventSilence {
		t.Fatalf("expected the sliced tail to report silence, got %s", got)
	}
}
