//go:build portaudio

package device

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
	"github.com/gordonklaus/portaudio"
)

const (
	framesPerBuffer = 1024
	stallTimeout    = 3 * time.Second
	watchInterval   = 500 * time.Millisecond
)

// PortAudioDriver captures from a local input device.
type PortAudioDriver struct {
	mu     sync.Mutex
	inited bool
}

func NewPortAudioDriver() *PortAudioDriver {
	return &PortAudioDriver{}
}

func (d *PortAudioDriver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inited {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	d.inited = true
	return nil
}

func (d *PortAudioDriver) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return nil
	}
	d.inited = false
	return portaudio.Terminate()
}

func (d *PortAudioDriver) Devices() ([]capture.DeviceInfo, error) {
	if err := d.Init(); err != nil {
		return nil, err
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var defaultIndex = -1
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultIndex = def.Index
	}
	return toDeviceInfos(infos, defaultIndex), nil
}

func toDeviceInfos(infos []*portaudio.DeviceInfo, defaultIndex int) []capture.DeviceInfo {
	out := make([]capture.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, capture.DeviceInfo{
			ID:                fmt.Sprint(info.Index),
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         info.Index == defaultIndex,
		})
	}
	return out
}

func (d *PortAudioDriver) Open(_ context.Context, c capture.Constraints, h capture.Handler) (capture.Stream, error) {
	dev, err := d.resolveDevice(c.DeviceID)
	if err != nil {
		return nil, err
	}
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		slog.Debug("portaudio input has no echo cancellation, noise suppression or gain control; capturing raw input", "device", dev.Name)
	}

	channels := c.ChannelCount
	if channels > dev.MaxInputChannels {
		channels = dev.MaxInputChannels
	}
	sampleRate := float64(c.SampleRate)
	if sampleRate <= 0 {
		sampleRate = dev.DefaultSampleRate
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = channels
	params.SampleRate = sampleRate
	params.FramesPerBuffer = framesPerBuffer

	s := &paStream{
		handler:    h,
		sampleRate: int(sampleRate),
		channels:   channels,
		done:       make(chan struct{}),
	}
	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("open portaudio stream on %q: %w", dev.Name, err)
	}
	s.stream = stream
	s.lastFrame.Store(time.Now().UnixNano())
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start portaudio stream: %w", err)
	}
	s.running.Store(true)
	s.wg.Add(1)
	go s.watch()

	slog.Info("portaudio stream opened", "device", dev.Name, "sample_rate", sampleRate, "channels", channels, "frames_per_buffer", framesPerBuffer)
	return s, nil
}

func (d *PortAudioDriver) resolveDevice(id string) (*portaudio.DeviceInfo, error) {
	if id == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return dev, nil
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	candidates := make([]inputCandidate, len(infos))
	for i, info := range infos {
		candidates[i] = inputCandidate{Index: info.Index, Name: info.Name, MaxInputChannels: info.MaxInputChannels}
	}
	i := matchInput(candidates, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", capture.ErrDeviceNotFound, id)
	}
	return infos[i], nil
}

type paStream struct {
	stream     *portaudio.Stream
	handler    capture.Handler
	sampleRate int
	channels   int

	running   atomic.Bool
	lastFrame atomic.Int64
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func (s *paStream) callback(in []float32) {
	s.lastFrame.Store(time.Now().UnixNano())
	// the buffer is reused by portaudio after the callback returns
	samples := make([]float32, len(in))
	copy(samples, in)
	s.handler.OnFrame(audio.RawFrame{Samples: samples, SampleRate: s.sampleRate, Channels: s.channels})
}

// watch reports a device that stops delivering audio while running.
func (s *paStream) watch() {
	defer s.wg.Done()
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.running.Load() {
				continue
			}
			idle := time.Since(time.Unix(0, s.lastFrame.Load()))
			if idle < stallTimeout {
				continue
			}
			s.handler.OnError(fmt.Errorf("capture device unavailable: no audio for %s", idle.Round(time.Millisecond)))
			return
		}
	}
}

func (s *paStream) Pause() error {
	s.running.Store(false)
	return s.stream.Stop()
}

func (s *paStream) Resume() error {
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.lastFrame.Store(time.Now().UnixNano())
	s.running.Store(true)
	return nil
}

func (s *paStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.running.Store(false)
		close(s.done)
		s.wg.Wait()
		stopErr := s.stream.Abort()
		if errors.Is(stopErr, portaudio.StreamIsStopped) {
			stopErr = nil
		}
		err = errors.Join(stopErr, s.stream.Close())
	})
	return err
}
