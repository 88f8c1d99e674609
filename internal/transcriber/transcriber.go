package transcriber

import (
	"context"
	"strings"
)

type StreamWriter interface {
	Write(pcm []byte) error
	Close() error
}

// Hypothesis is the recognizer's current guess for the audio window. Interim
// hypotheses replace each other; a final one closes the utterance.
type Hypothesis struct {
	Text    string
	IsFinal bool
}

type ResultReceiver interface {
	OnHypothesis(h Hypothesis)
	OnError(err error)
}

// Transcriber consumes 16 kHz mono LINEAR16 audio.
type Transcriber interface {
	StartStreaming(ctx context.Context, sessionID, language string, receiver ResultReceiver) (StreamWriter, error)
}

// JoinInterim merges the partial results of one response into a single
// whole-window hypothesis.
func JoinInterim(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}
