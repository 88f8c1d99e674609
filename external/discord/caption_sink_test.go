package discord

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/foxseedlab/jimakun/internal/caption"
)

func TestCaptionSink_PostsCommittedTextOnly(t *testing.T) {
	client := &mockClient{}
	sink := NewCaptionSink(client, "text-1", "")
	ctx := context.Background()

	updates := []caption.Update{
		{Type: caption.UpdateCaption, SessionID: "s1", Stable: "hello", Unstable: "wor"},
		{Type: caption.UpdateCaption, SessionID: "s1", Stable: "hello world", Committed: "hello world", IsFinal: true},
		{Type: caption.UpdateCaption, SessionID: "s1", Committed: "   "},
	}
	for _, u := range updates {
		if err := sink.PublishCaption(ctx, u); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(client.messages) != 1 || client.messages[0] != "hello world" {
		t.Fatalf("expected only the committed text, got %#v", client.messages)
	}
}

func TestCaptionSink_AnnouncesEachSessionOnce(t *testing.T) {
	client := &mockClient{}
	sink := NewCaptionSink(client, "text-1", "")
	ctx := context.Background()

	for _, u := range []caption.Update{
		{Type: caption.UpdateStatus, SessionID: "s1", Status: "recording"},
		{Type: caption.UpdateStatus, SessionID: "s1", Status: "paused"},
		{Type: caption.UpdateStatus, SessionID: "s1", Status: "recording"},
		{Type: caption.UpdateStatus, SessionID: "s2", Status: "recording"},
	} {
		_ = sink.PublishCaption(ctx, u)
	}
	if len(client.messages) != 2 {
		t.Fatalf("expected two start messages, got %#v", client.messages)
	}
	for _, msg := range client.messages {
		if msg != startedMessage {
			t.Fatalf("unexpected message %q", msg)
		}
	}
}

func TestCaptionSink_AttachesTranscript(t *testing.T) {
	client := &mockClient{}
	sink := NewCaptionSink(client, "text-1", "")

	err := sink.PublishTranscript(context.Background(), caption.Transcript{
		SessionID: "s1",
		Filename:  "transcript-s1.txt",
		Body:      []byte("00:00:01 hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.files) != 1 {
		t.Fatalf("expected one file message, got %d", len(client.files))
	}
	got := client.files[0]
	if got.ChannelID != "text-1" || got.Filename != "transcript-s1.txt" || string(got.FileBody) != "00:00:01 hello" || got.Content != stoppedMessage {
		t.Fatalf("unexpected file message: %#v", got)
	}
}

func TestCaptionSink_StartMessageNamesVoiceChannel(t *testing.T) {
	client := &mockClient{channelName: "study-room"}
	sink := NewCaptionSink(client, "text-1", "vc-1")

	_ = sink.PublishCaption(context.Background(), caption.Update{Type: caption.UpdateStatus, SessionID: "s1", Status: "recording"})
	want := fmt.Sprintf(startedInFormat, "study-room")
	if len(client.messages) != 1 || client.messages[0] != want {
		t.Fatalf("expected %q, got %#v", want, client.messages)
	}
}

func TestCaptionSink_PassesContextToClient(t *testing.T) {
	client := &mockClient{}
	sink := NewCaptionSink(client, "text-1", "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_ = sink.PublishCaption(ctx, caption.Update{Type: caption.UpdateCaption, Committed: "hello"})
	if client.lastCtx != ctx {
		t.Fatal("expected the caption context to reach the client")
	}
	_ = sink.PublishTranscript(ctx, caption.Transcript{Filename: "t.txt"})
	if client.lastCtx != ctx {
		t.Fatal("expected the transcript context to reach the client")
	}
}
