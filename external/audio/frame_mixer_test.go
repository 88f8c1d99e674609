package audio

import "testing"

func TestFrameMixer_SumsOneFramePerSpeaker(t *testing.T) {
	m := newFrameMixer()
	if _, ok := m.mix(); ok {
		t.Fatal("expected no frame from an empty mixer")
	}

	a := make([]float32, samplesPerFrame)
	b := make([]float32, samplesPerFrame)
	a[0], b[0] = 0.25, 0.5
	a[1], b[1] = 0.75, 0.5
	m.push("alice", a)
	m.push("bob", b)
	m.push("alice", make([]float32, samplesPerFrame))

	frame, ok := m.mix()
	if !ok {
		t.Fatal("expected a mixed frame")
	}
	if frame.SampleRate != 48000 || frame.Channels != 2 || len(frame.Samples) != samplesPerFrame {
		t.Fatalf("unexpected frame format: rate=%d channels=%d samples=%d", frame.SampleRate, frame.Channels, len(frame.Samples))
	}
	if frame.Samples[0] != 0.75 || frame.Samples[1] != 1 {
		t.Fatalf("unexpected mix: %v %v", frame.Samples[0], frame.Samples[1])
	}

	if _, ok := m.mix(); !ok {
		t.Fatal("expected alice's second frame")
	}
	if _, ok := m.mix(); ok {
		t.Fatal("expected queues to be drained")
	}
}

func TestFrameMixer_DropsOldestWhenBacklogFull(t *testing.T) {
	m := newFrameMixer()
	for i := 0; i < maxQueuedFrames; i++ {
		if m.push("alice", []float32{float32(i) / 100}) {
			t.Fatalf("unexpected drop at frame %d", i)
		}
	}
	if !m.push("alice", []float32{0.9}) {
		t.Fatal("expected oldest frame to be dropped")
	}
	frame, _ := m.mix()
	if frame.Samples[0] != 0.01 {
		t.Fatalf("expected frame 1 to be next after dropping frame 0, got %v", frame.Samples[0])
	}
}

func TestClampSample(t *testing.T) {
	if clampSample(1.5) != 1 || clampSample(-3) != -1 || clampSample(0.2) != 0.2 {
		t.Fatal("unexpected clamp result")
	}
}
