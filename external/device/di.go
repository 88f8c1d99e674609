package device

import (
	"fmt"

	discordimpl "github.com/foxseedlab/jimakun/external/discord"
	"github.com/foxseedlab/jimakun/external/recorder"
	"github.com/foxseedlab/jimakun/internal/audio"
	"github.com/foxseedlab/jimakun/internal/capture"
	"github.com/foxseedlab/jimakun/internal/config"
	discordpkg "github.com/foxseedlab/jimakun/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*PortAudioDriver, error) {
		return NewPortAudioDriver(), nil
	})
	do.Provide(injector, func(i do.Injector) (capture.DeviceLister, error) {
		return do.MustInvoke[*PortAudioDriver](i), nil
	})
	do.Provide(injector, func(i do.Injector) (capture.Driver, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.CaptureDriver {
		case config.CaptureDriverPortAudio:
			return do.MustInvoke[*PortAudioDriver](i), nil
		case config.CaptureDriverDiscord:
			return discordimpl.NewVoiceDriver(
				do.MustInvoke[discordpkg.Client](i),
				do.MustInvoke[audio.MixerFactory](i),
				c.DiscordGuildID,
				c.DiscordVoiceChannelID,
			), nil
		}
		return nil, fmt.Errorf("unknown capture driver %q", c.CaptureDriver)
	})
	do.Provide(injector, func(i do.Injector) (capture.EngineFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		driver := do.MustInvoke[capture.Driver](i)
		engineCfg := capture.Config{
			DeviceID:     c.CaptureDeviceID,
			SampleRate:   c.CaptureSampleRate,
			ChannelCount: c.CaptureChannelCount,
			QueueSize:    c.CaptureQueueSize,
		}
		return func() *capture.Engine {
			var opts []capture.Option
			if c.CaptureDebugWAVPath != "" {
				opts = append(opts, capture.WithRecorder(recorder.NewWAVRecorder(c.CaptureDebugWAVPath, c.CaptureDebugWAVMax())))
			}
			return capture.NewEngine(driver, engineCfg, opts...)
		}, nil
	})
}
