package caption

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/jimakun/internal/webhook"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

type transcriptMeta struct {
	SessionID     string
	Language      string
	CaptureDriver string
	Timezone      string
	StopReason    string
}

func buildTranscriptText(meta transcriptMeta, startedAt, endedAt time.Time, loc *time.Location, segments []Segment) []byte {
	startText := startedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)
	endText := endedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)

	lines := []string{
		fmt.Sprintf("Session: %s", meta.SessionID),
		fmt.Sprintf("Period: %s ~ %s (%s)", startText, endText, meta.Timezone),
		fmt.Sprintf("Language: %s", meta.Language),
		"",
	}
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("%s %s", formatElapsedHMS(time.Duration(seg.OffsetMs)*time.Millisecond), seg.Text))
	}
	return []byte(strings.Join(lines, "\n"))
}

func buildTranscriptWebhookPayload(meta transcriptMeta, startedAt, endedAt time.Time, loc *time.Location, segments []Segment) webhook.TranscriptWebhookPayload {
	transcriptLines := make([]string, 0, len(segments))
	for _, seg := range segments {
		transcriptLines = append(transcriptLines, seg.Text)
	}

	durationSeconds := int64(endedAt.Sub(startedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	return webhook.TranscriptWebhookPayload{
		SchemaVersion:      webhook.TranscriptWebhookSchemaVersion,
		SessionID:          meta.SessionID,
		Language:           meta.Language,
		CaptureDriver:      meta.CaptureDriver,
		StartAt:            startedAt.In(safeLocation(loc)).Format(time.RFC3339),
		EndAt:              endedAt.In(safeLocation(loc)).Format(time.RFC3339),
		Timezone:           meta.Timezone,
		DurationSeconds:    durationSeconds,
		StopReason:         meta.StopReason,
		SegmentCount:       len(segments),
		TranscriptSegments: buildTranscriptWebhookSegments(segments, endedAt, safeLocation(loc)),
		Transcript:         strings.Join(transcriptLines, "\n"),
	}
}

// A segment ends where the next one starts; the last one ends with the session.
func buildTranscriptWebhookSegments(segments []Segment, sessionEndedAt time.Time, loc *time.Location) []webhook.TranscriptWebhookSegment {
	out := make([]webhook.TranscriptWebhookSegment, 0, len(segments))
	for i, seg := range segments {
		segmentEnd := sessionEndedAt
		if i+1 < len(segments) {
			segmentEnd = segments[i+1].SpokenAt
		}
		if segmentEnd.Before(seg.SpokenAt) {
			segmentEnd = seg.SpokenAt
		}
		out = append(out, webhook.TranscriptWebhookSegment{
			Index:      seg.Index,
			OffsetMs:   seg.OffsetMs,
			StartAt:    seg.SpokenAt.In(loc).Format(time.RFC3339),
			EndAt:      segmentEnd.In(loc).Format(time.RFC3339),
			Transcript: seg.Text,
		})
	}
	return out
}

func transcriptFilename(sessionID string, startedAt time.Time, loc *time.Location) string {
	return fmt.Sprintf("transcript-%s-%s.txt", startedAt.In(safeLocation(loc)).Format("20060102-150405"), shortID(sessionID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsedHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
