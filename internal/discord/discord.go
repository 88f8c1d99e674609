package discord

import "context"

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
	SendChannelMessage(ctx context.Context, channelID, content string) error
	SendChannelMessageWithFile(ctx context.Context, msg FileMessage) error
	ResolveChannelName(channelID string) string
}

type VoiceConnection interface {
	Disconnect() error
	// ReceiveAudio blocks until the connection stops delivering packets.
	ReceiveAudio(callback func(speakerID string, opus []byte))
}
