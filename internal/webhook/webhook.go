package webhook

import "context"

const TranscriptWebhookSchemaVersion = "2026-10-01"

type TranscriptWebhookSegment struct {
	Index      int    `json:"index"`
	OffsetMs   int64  `json:"offset_ms"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
	Transcript string `json:"transcript"`
}

type TranscriptWebhookPayload struct {
	SchemaVersion      string                     `json:"schema_version"`
	SessionID          string                     `json:"session_id"`
	Language           string                     `json:"language"`
	CaptureDriver      string                     `json:"capture_driver"`
	StartAt            string                     `json:"start_at"`
	EndAt              string                     `json:"end_at"`
	Timezone           string                     `json:"timezone"`
	DurationSeconds    int64                      `json:"duration_seconds"`
	StopReason         string                     `json:"stop_reason"`
	SegmentCount       int                        `json:"segment_count"`
	TranscriptSegments []TranscriptWebhookSegment `json:"transcript_segments"`
	Transcript         string                     `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
