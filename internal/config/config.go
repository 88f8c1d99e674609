package config

import (
	"fmt"
	"time"
)

const (
	CaptureDriverPortAudio = "portaudio"
	CaptureDriverDiscord   = "discord"
)

type Config struct {
	Env                        string
	CaptureDriver              string
	CaptureDeviceID            string
	CaptureSampleRate          int
	CaptureChannelCount        int
	CaptureQueueSize           int
	CaptureDebugWAVPath        string
	CaptureDebugWAVMaxMin      int
	TranscribeLanguage         string
	StabilizePolicy            string
	VADEnergyThreshold         float64
	VADMinSilenceMs            int
	VADMinSpeechMs             int
	VADMaxSpeechMs             int
	VADCommitOnSilence         bool
	MaxSessionDurationMin      int
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	DiscordToken               string
	DiscordGuildID             string
	DiscordVoiceChannelID      string
	DiscordCaptionChannelID    string
	CaptionListenAddr          string
	CaptionAllowedOrigins      []string
	TranscriptTimezone         string
	TranscriptWebhookURL       string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.CaptureDriver {
	case CaptureDriverPortAudio:
	case CaptureDriverDiscord:
		for _, req := range c.discordCaptureFieldChecks() {
			if req.value == "" {
				return fmt.Errorf("%s is required when CAPTURE_DRIVER=discord", req.name)
			}
		}
	default:
		return fmt.Errorf("CAPTURE_DRIVER must be %q or %q, got %q", CaptureDriverPortAudio, CaptureDriverDiscord, c.CaptureDriver)
	}
	if c.DiscordCaptionChannelID != "" && c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required when DISCORD_CAPTION_CHANNEL_ID is set")
	}
	if c.CaptureSampleRate <= 0 {
		return fmt.Errorf("CAPTURE_SAMPLE_RATE must be positive, got %d", c.CaptureSampleRate)
	}
	if c.CaptureChannelCount <= 0 {
		return fmt.Errorf("CAPTURE_CHANNEL_COUNT must be positive, got %d", c.CaptureChannelCount)
	}
	if c.CaptureQueueSize <= 0 {
		return fmt.Errorf("CAPTURE_QUEUE_SIZE must be positive, got %d", c.CaptureQueueSize)
	}
	if c.StabilizePolicy != "external" && c.StabilizePolicy != "agreement" {
		return fmt.Errorf("STABILIZE_POLICY must be external or agreement, got %q", c.StabilizePolicy)
	}
	if c.VADEnergyThreshold <= 0 || c.VADEnergyThreshold >= 1 {
		return fmt.Errorf("VAD_ENERGY_THRESHOLD must be in (0, 1), got %v", c.VADEnergyThreshold)
	}
	if c.VADMinSpeechMs <= 0 {
		return fmt.Errorf("VAD_MIN_SPEECH_MS must be positive, got %d", c.VADMinSpeechMs)
	}
	if c.VADMaxSpeechMs <= c.VADMinSpeechMs {
		return fmt.Errorf("VAD_MAX_SPEECH_MS must exceed VAD_MIN_SPEECH_MS, got %d", c.VADMaxSpeechMs)
	}
	if c.VADMinSilenceMs <= 0 {
		return fmt.Errorf("VAD_MIN_SILENCE_MS must be positive, got %d", c.VADMinSilenceMs)
	}
	if c.CaptureDebugWAVMaxMin <= 0 {
		return fmt.Errorf("CAPTURE_DEBUG_WAV_MAX_MIN must be positive, got %d", c.CaptureDebugWAVMaxMin)
	}
	if c.MaxSessionDurationMin <= 0 {
		return fmt.Errorf("MAX_SESSION_DURATION_MIN must be positive, got %d", c.MaxSessionDurationMin)
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "TRANSCRIPT_TIMEZONE", value: c.TranscriptTimezone},
	}
}

func (c *Config) discordCaptureFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "DISCORD_VOICE_CHANNEL_ID", value: c.DiscordVoiceChannelID},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) CaptureDebugWAVMax() time.Duration {
	return time.Duration(c.CaptureDebugWAVMaxMin) * time.Minute
}

func (c *Config) MaxSessionDuration() time.Duration {
	return time.Duration(c.MaxSessionDurationMin) * time.Minute
}
