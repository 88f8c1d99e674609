package caption

import (
	"context"
	"log/slog"
	"time"

	"github.com/foxseedlab/jimakun/internal/webhook"
)

type UpdateType string

const (
	UpdateCaption UpdateType = "caption"
	UpdateStatus  UpdateType = "status"
	UpdateError   UpdateType = "error"
)

// Update is one change to the live caption view.
type Update struct {
	Type        UpdateType `json:"type"`
	SessionID   string     `json:"session_id"`
	Stable      string     `json:"stable,omitempty"`
	Unstable    string     `json:"unstable,omitempty"`
	Committed   string     `json:"committed,omitempty"`
	IsFinal     bool       `json:"is_final,omitempty"`
	Status      string     `json:"status,omitempty"`
	Error       string     `json:"error,omitempty"`
	TimestampMs int64      `json:"timestamp_ms"`
}

type Segment struct {
	Index    int
	OffsetMs int64
	SpokenAt time.Time
	Text     string
}

// Transcript is the finished record of one session.
type Transcript struct {
	SessionID  string
	StartedAt  time.Time
	EndedAt    time.Time
	StopReason string
	Segments   []Segment
	Filename   string
	Body       []byte
	Payload    webhook.TranscriptWebhookPayload
}

type Sink interface {
	PublishCaption(ctx context.Context, u Update) error
	PublishTranscript(ctx context.Context, t Transcript) error
}

// Sinks fans out to every sink; one failing sink does not stop the others.
type Sinks []Sink

func (s Sinks) PublishCaption(ctx context.Context, u Update) error {
	for _, sink := range s {
		if err := sink.PublishCaption(ctx, u); err != nil {
			slog.Warn("failed to publish caption update", "error", err, "session_id", u.SessionID, "type", u.Type)
		}
	}
	return nil
}

func (s Sinks) PublishTranscript(ctx context.Context, t Transcript) error {
	for _, sink := range s {
		if err := sink.PublishTranscript(ctx, t); err != nil {
			slog.Error("failed to publish transcript", "error", err, "session_id", t.SessionID)
		}
	}
	return nil
}
