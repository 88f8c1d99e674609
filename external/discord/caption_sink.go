package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/foxseedlab/jimakun/internal/caption"
	discordpkg "github.com/foxseedlab/jimakun/internal/discord"
)

const (
	startedMessage     = ":microphone2: **字幕を開始しました。**"
	startedInFormat    = ":microphone2: **%s の字幕を開始しました。**"
	stoppedMessage     = ":pause_button:  **字幕を終了しました。**\n:page_facing_up:  **字幕の記録**"
	errorMessageFormat = ":warning: **音声の取得に失敗しました。** %s"
)

// CaptionSink posts committed text to a text channel and attaches the
// transcript when the session ends. Interim text is not posted. When the
// audio comes from a voice channel the start message names it.
type CaptionSink struct {
	client         discordpkg.Client
	channelID      string
	voiceChannelID string

	mu        sync.Mutex
	announced string
}

func NewCaptionSink(client discordpkg.Client, channelID, voiceChannelID string) *CaptionSink {
	return &CaptionSink{client: client, channelID: channelID, voiceChannelID: voiceChannelID}
}

func (s *CaptionSink) PublishCaption(ctx context.Context, u caption.Update) error {
	switch u.Type {
	case caption.UpdateCaption:
		text := strings.TrimSpace(u.Committed)
		if text == "" {
			return nil
		}
		return s.client.SendChannelMessage(ctx, s.channelID, text)
	case caption.UpdateStatus:
		if u.Status != "recording" || !s.announce(u.SessionID) {
			return nil
		}
		return s.client.SendChannelMessage(ctx, s.channelID, s.startedMessage())
	case caption.UpdateError:
		return s.client.SendChannelMessage(ctx, s.channelID, fmt.Sprintf(errorMessageFormat, u.Error))
	}
	return nil
}

// announce reports whether the session has not been announced yet. A resume
// also reports recording and must not post again.
func (s *CaptionSink) announce(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announced == sessionID {
		return false
	}
	s.announced = sessionID
	return true
}

func (s *CaptionSink) startedMessage() string {
	if s.voiceChannelID == "" {
		return startedMessage
	}
	return fmt.Sprintf(startedInFormat, s.client.ResolveChannelName(s.voiceChannelID))
}

func (s *CaptionSink) PublishTranscript(ctx context.Context, t caption.Transcript) error {
	return s.client.SendChannelMessageWithFile(ctx, discordpkg.FileMessage{
		ChannelID: s.channelID,
		Content:   stoppedMessage,
		Filename:  t.Filename,
		FileBody:  t.Body,
	})
}
