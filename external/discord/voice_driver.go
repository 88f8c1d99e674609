package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/jimakun/internal/audio"
	"github.com/foxseedlab/jimakun/internal/capture"
	discordpkg "github.com/foxseedlab/jimakun/internal/discord"
)

const mixInterval = 20 * time.Millisecond

var errVoiceConnectionLost = errors.New("discord voice connection unavailable")

// VoiceDriver captures the mixed audio of a Discord voice channel. The
// device id of the constraints is ignored; the channel comes from config.
type VoiceDriver struct {
	client    discordpkg.Client
	newMixer  audio.MixerFactory
	guildID   string
	channelID string
}

func NewVoiceDriver(client discordpkg.Client, newMixer audio.MixerFactory, guildID, channelID string) *VoiceDriver {
	return &VoiceDriver{
		client:    client,
		newMixer:  newMixer,
		guildID:   guildID,
		channelID: channelID,
	}
}

func (d *VoiceDriver) Init() error {
	return d.client.Connect(context.Background())
}

func (d *VoiceDriver) Terminate() error {
	return d.client.Close()
}

func (d *VoiceDriver) Open(_ context.Context, _ capture.Constraints, h capture.Handler) (capture.Stream, error) {
	vc, err := d.client.JoinVoiceChannel(d.guildID, d.channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: join voice channel %s: %v", capture.ErrDeviceNotFound, d.channelID, err)
	}
	s := &voiceStream{
		vc:      vc,
		mixer:   d.newMixer(),
		handler: h,
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.receive()
	go s.pump()
	slog.Info("discord voice capture started", "guild_id", d.guildID, "channel_id", d.channelID)
	return s, nil
}

type voiceStream struct {
	vc      discordpkg.VoiceConnection
	mixer   audio.Mixer
	handler capture.Handler

	paused    atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// receive is not waited on by Close; the packet channel may outlive the
// connection and the mixer ignores writes once closed.
func (s *voiceStream) receive() {
	s.vc.ReceiveAudio(s.mixer.WriteOpusPacket)
	if s.closing.Load() {
		return
	}
	s.handler.OnError(errVoiceConnectionLost)
}

func (s *voiceStream) pump() {
	defer s.wg.Done()
	ticker := time.NewTicker(mixInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			frame, ok := s.mixer.ReadMixedFrame()
			if !ok || s.paused.Load() {
				continue
			}
			s.handler.OnFrame(frame)
		}
	}
}

func (s *voiceStream) Pause() error {
	s.paused.Store(true)
	return nil
}

func (s *voiceStream) Resume() error {
	s.paused.Store(false)
	return nil
}

func (s *voiceStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		close(s.done)
		err = s.vc.Disconnect()
		s.wg.Wait()
		s.mixer.Close()
	})
	return err
}
