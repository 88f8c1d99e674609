package discord

import (
	"github.com/foxseedlab/jimakun/internal/config"
	discordpkg "github.com/foxseedlab/jimakun/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (discordpkg.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(c.DiscordToken)
	})
	do.Provide(injector, func(i do.Injector) (*CaptionSink, error) {
		c := do.MustInvoke[*config.Config](i)
		voiceChannelID := ""
		if c.CaptureDriver == config.CaptureDriverDiscord {
			voiceChannelID = c.DiscordVoiceChannelID
		}
		return NewCaptionSink(do.MustInvoke[discordpkg.Client](i), c.DiscordCaptionChannelID, voiceChannelID), nil
	})
}
