package discord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/jimakun/internal/audio"
	"github.com/foxseedlab/jimakun/internal/capture"
	discordpkg "github.com/foxseedlab/jimakun/internal/discord"
)

type mockClient struct {
	mu          sync.Mutex
	connects    int
	closes      int
	joinErr     error
	voice       *mockVoice
	messages    []string
	files       []discordpkg.FileMessage
	sendErr     error
	lastCtx     context.Context
	channelName string
	joinedGuild string
	joinedVoice string
}

func (m *mockClient) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockClient) JoinVoiceChannel(guildID, channelID string) (discordpkg.VoiceConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinErr != nil {
		return nil, m.joinErr
	}
	m.joinedGuild, m.joinedVoice = guildID, channelID
	return m.voice, nil
}

func (m *mockClient) SendChannelMessage(ctx context.Context, _ string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtx = ctx
	m.messages = append(m.messages, content)
	return m.sendErr
}

func (m *mockClient) SendChannelMessageWithFile(ctx context.Context, msg discordpkg.FileMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtx = ctx
	m.files = append(m.files, msg)
	return m.sendErr
}

func (m *mockClient) ResolveChannelName(channelID string) string {
	if m.channelName != "" {
		return m.channelName
	}
	return channelID
}

type mockVoice struct {
	packets      chan []byte
	disconnected chan struct{}
	once         sync.Once
}

func newMockVoice() *mockVoice {
	return &mockVoice{packets: make(chan []byte, 8), disconnected: make(chan struct{})}
}

func (v *mockVoice) Disconnect() error {
	v.once.Do(func() { close(v.disconnected) })
	return nil
}

func (v *mockVoice) ReceiveAudio(callback func(speakerID string, opus []byte)) {
	for {
		select {
		case <-v.disconnected:
			return
		case p, ok := <-v.packets:
			if !ok {
				return
			}
			callback("user-1", p)
		}
	}
}

// passMixer turns every packet into one mono frame of the packet's length.
type passMixer struct {
	mu      sync.Mutex
	queued  []audio.RawFrame
	written int
	closed  bool
}

func (m *passMixer) WriteOpusPacket(_ string, p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.written++
	m.queued = append(m.queued, audio.RawFrame{Samples: make([]float32, len(p)), SampleRate: 48000, Channels: 1})
}

func (m *passMixer) ReadMixedFrame() (audio.RawFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queued) == 0 {
		return audio.RawFrame{}, false
	}
	f := m.queued[0]
	m.queued = m.queued[1:]
	return f, true
}

func (m *passMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func TestVoiceDriver_DeliversMixedFrames(t *testing.T) {
	client := &mockClient{voice: newMockVoice()}
	mixer := &passMixer{}
	d := NewVoiceDriver(client, func() audio.Mixer { return mixer }, "guild-1", "vc-1")

	if err := d.Init(); err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}
	frames := make(chan audio.RawFrame, 4)
	stream, err := d.Open(context.Background(), capture.Constraints{}, capture.Handler{
		OnFrame: func(f audio.RawFrame) { frames <- f },
		OnError: func(err error) { t.Errorf("unexpected device error: %v", err) },
	})
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if client.joinedGuild != "guild-1" || client.joinedVoice != "vc-1" {
		t.Fatalf("unexpected voice channel: %s/%s", client.joinedGuild, client.joinedVoice)
	}

	client.voice.packets <- make([]byte, 960)
	select {
	case f := <-frames:
		if len(f.Samples) != 960 {
			t.Fatalf("expected 960 samples, got %d", len(f.Samples))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mixed frame")
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !mixer.closed {
		t.Fatal("expected mixer to be closed")
	}
	if err := d.Terminate(); err != nil {
		t.Fatalf("unexpected terminate error: %v", err)
	}
	if client.connects != 1 || client.closes != 1 {
		t.Fatalf("expected one connect and one close, got %d/%d", client.connects, client.closes)
	}
}

func TestVoiceDriver_PausedStreamSkipsFrames(t *testing.T) {
	client := &mockClient{voice: newMockVoice()}
	mixer := &passMixer{}
	d := NewVoiceDriver(client, func() audio.Mixer { return mixer }, "guild-1", "vc-1")

	frames := make(chan audio.RawFrame, 4)
	stream, err := d.Open(context.Background(), capture.Constraints{}, capture.Handler{
		OnFrame: func(f audio.RawFrame) { frames <- f },
		OnError: func(error) {},
	})
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer stream.Close()

	if err := stream.Pause(); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}
	client.voice.packets <- make([]byte, 10)
	deadline := time.Now().Add(time.Second)
	for {
		mixer.mu.Lock()
		drained := mixer.written == 1 && len(mixer.queued) == 0
		mixer.mu.Unlock()
		if drained {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for paused frame to drain")
		}
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-frames:
		t.Fatal("expected no frame while paused")
	case <-time.After(60 * time.Millisecond):
	}

	if err := stream.Resume(); err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	client.voice.packets <- make([]byte, 20)
	select {
	case f := <-frames:
		if len(f.Samples) != 20 {
			t.Fatalf("expected the post-resume frame, got %d samples", len(f.Samples))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame after resume")
	}
}

func TestVoiceDriver_LostConnectionReportsError(t *testing.T) {
	client := &mockClient{voice: newMockVoice()}
	d := NewVoiceDriver(client, func() audio.Mixer { return &passMixer{} }, "guild-1", "vc-1")

	errs := make(chan error, 1)
	stream, err := d.Open(context.Background(), capture.Constraints{}, capture.Handler{
		OnFrame: func(audio.RawFrame) {},
		OnError: func(err error) { errs <- err },
	})
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer stream.Close()

	close(client.voice.packets)
	select {
	case err := <-errs:
		if !errors.Is(err, errVoiceConnectionLost) {
			t.Fatalf("expected lost connection error, got %v", err)
		}
		if !errors.Is(capture.Classify(err), capture.ErrDeviceBusy) {
			t.Fatalf("expected device busy classification, got %v", capture.Classify(err))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for device error")
	}
}

func TestVoiceDriver_JoinFailureIsDeviceNotFound(t *testing.T) {
	client := &mockClient{joinErr: errors.New("missing access")}
	d := NewVoiceDriver(client, func() audio.Mixer { return &passMixer{} }, "guild-1", "vc-1")

	_, err := d.Open(context.Background(), capture.Constraints{}, capture.Handler{})
	if !errors.Is(err, capture.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}
