package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/jimakun/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string  `env:"ENV" envDefault:"production"`
	CaptureDriver              string  `env:"CAPTURE_DRIVER" envDefault:"portaudio"`
	CaptureDeviceID            string  `env:"CAPTURE_DEVICE_ID"`
	CaptureSampleRate          int     `env:"CAPTURE_SAMPLE_RATE" envDefault:"48000"`
	CaptureChannelCount        int     `env:"CAPTURE_CHANNEL_COUNT" envDefault:"1"`
	CaptureQueueSize           int     `env:"CAPTURE_QUEUE_SIZE" envDefault:"64"`
	CaptureDebugWAVPath        string  `env:"CAPTURE_DEBUG_WAV_PATH"`
	CaptureDebugWAVMaxMin      int     `env:"CAPTURE_DEBUG_WAV_MAX_MIN" envDefault:"10"`
	TranscribeLanguage         string  `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	StabilizePolicy            string  `env:"STABILIZE_POLICY" envDefault:"external"`
	VADEnergyThreshold         float64 `env:"VAD_ENERGY_THRESHOLD" envDefault:"0.002"`
	VADMinSilenceMs            int     `env:"VAD_MIN_SILENCE_MS" envDefault:"500"`
	VADMinSpeechMs             int     `env:"VAD_MIN_SPEECH_MS" envDefault:"1000"`
	VADMaxSpeechMs             int     `env:"VAD_MAX_SPEECH_MS" envDefault:"10000"`
	VADCommitOnSilence         bool    `env:"VAD_COMMIT_ON_SILENCE" envDefault:"true"`
	MaxSessionDurationMin      int     `env:"MAX_SESSION_DURATION_MIN" envDefault:"180"`
	GoogleCloudProjectID       string  `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string  `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string  `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string  `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	DiscordToken               string  `env:"DISCORD_TOKEN"`
	DiscordGuildID             string  `env:"DISCORD_GUILD_ID"`
	DiscordVoiceChannelID      string  `env:"DISCORD_VOICE_CHANNEL_ID"`
	DiscordCaptionChannelID    string  `env:"DISCORD_CAPTION_CHANNEL_ID"`
	CaptionListenAddr          string  `env:"CAPTION_LISTEN_ADDR" envDefault:":8765"`
	CaptionAllowedOrigins      string  `env:"CAPTION_ALLOWED_ORIGINS"`
	TranscriptTimezone         string  `env:"TRANSCRIPT_TIMEZONE" envDefault:"UTC"`
	TranscriptWebhookURL       string  `env:"TRANSCRIPT_WEBHOOK_URL"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func Load(dotenvPaths ...string) (*internalconfig.Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		CaptureDriver:              raw.CaptureDriver,
		CaptureDeviceID:            raw.CaptureDeviceID,
		CaptureSampleRate:          raw.CaptureSampleRate,
		CaptureChannelCount:        raw.CaptureChannelCount,
		CaptureQueueSize:           raw.CaptureQueueSize,
		CaptureDebugWAVPath:        raw.CaptureDebugWAVPath,
		CaptureDebugWAVMaxMin:      raw.CaptureDebugWAVMaxMin,
		TranscribeLanguage:         raw.TranscribeLanguage,
		StabilizePolicy:            raw.StabilizePolicy,
		VADEnergyThreshold:         raw.VADEnergyThreshold,
		VADMinSilenceMs:            raw.VADMinSilenceMs,
		VADMinSpeechMs:             raw.VADMinSpeechMs,
		VADMaxSpeechMs:             raw.VADMaxSpeechMs,
		VADCommitOnSilence:         raw.VADCommitOnSilence,
		MaxSessionDurationMin:      raw.MaxSessionDurationMin,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		DiscordToken:               raw.DiscordToken,
		DiscordGuildID:             raw.DiscordGuildID,
		DiscordVoiceChannelID:      raw.DiscordVoiceChannelID,
		DiscordCaptionChannelID:    raw.DiscordCaptionChannelID,
		CaptionListenAddr:          raw.CaptionListenAddr,
		CaptionAllowedOrigins:      splitList(raw.CaptionAllowedOrigins),
		TranscriptTimezone:         raw.TranscriptTimezone,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
