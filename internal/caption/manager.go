package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/jimakun/internal/capture"
	"github.com/foxseedlab/jimakun/internal/config"
	"github.com/foxseedlab/jimakun/internal/stabilizer"
	"github.com/foxseedlab/jimakun/internal/transcriber"
	"github.com/foxseedlab/jimakun/internal/vad"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	StopReasonManual           = "manual"
	StopReasonMaxDuration      = "max_duration"
	StopReasonCaptureError     = "capture_error"
	StopReasonTranscriberError = "transcriber_error"
	StopReasonServerClosed     = "server_closed"
)

const (
	pipelineStatsInterval = 5 * time.Second
	publishTimeout        = 5 * time.Second
	transcriptTimeout     = 30 * time.Second
)

var ErrSessionActive = errors.New("caption session already active")

// Manager runs at most one caption session: capture, recognition,
// stabilization and fan-out to sinks.
type Manager struct {
	cfg         *config.Config
	newEngine   capture.EngineFactory
	transcriber transcriber.Transcriber
	sinks       Sinks
	loc         *time.Location
	now         func() time.Time

	mu     sync.Mutex
	active *runningSession
}

type runningSession struct {
	id         string
	startedAt  time.Time
	engine     *capture.Engine
	stabilizer *stabilizer.Stabilizer
	tracker    *vad.Tracker
	writer     transcriber.StreamWriter
	cancel     context.CancelFunc
	group      *errgroup.Group
	maxTimer   *time.Timer
	publisher  *publisher
	stopped    atomic.Bool
	done       chan struct{}

	segMu    sync.Mutex
	segments []Segment

	writtenChunks atomic.Int64
	silenceEvents atomic.Int64
}

func NewManager(cfg *config.Config, newEngine capture.EngineFactory, stt transcriber.Transcriber, sinks Sinks) *Manager {
	loc, err := time.LoadLocation(cfg.TranscriptTimezone)
	if err != nil {
		slog.Warn("invalid transcript timezone; falling back to UTC", "timezone", cfg.TranscriptTimezone, "error", err)
		loc = time.UTC
	}
	return &Manager{
		cfg:         cfg,
		newEngine:   newEngine,
		transcriber: stt,
		sinks:       sinks,
		loc:         loc,
		now:         time.Now,
	}
}

func (m *Manager) newTracker() *vad.Tracker {
	return vad.NewTracker(vad.Config{
		Threshold:    m.cfg.VADEnergyThreshold,
		MinSilenceMs: int64(m.cfg.VADMinSilenceMs),
		MinSpeechMs:  int64(m.cfg.VADMinSpeechMs),
		MaxSpeechMs:  int64(m.cfg.VADMaxSpeechMs),
	})
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Done is closed when the current session ends. Without a session it is
// already closed.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.active.done
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return ErrSessionActive
	}

	policy, err := stabilizer.ParsePolicy(m.cfg.StabilizePolicy)
	if err != nil {
		return err
	}
	rs := &runningSession{
		id:         uuid.NewString(),
		startedAt:  m.now(),
		engine:     m.newEngine(),
		stabilizer: stabilizer.New(policy),
		tracker:    m.newTracker(),
		done:       make(chan struct{}),
	}
	slog.Info("start caption session requested", "session_id", rs.id, "driver", m.cfg.CaptureDriver, "policy", policy, "language", m.cfg.TranscribeLanguage)

	streamCtx, cancel := context.WithCancel(context.Background())
	receiver := &resultReceiver{manager: m, session: rs}
	writer, err := m.transcriber.StartStreaming(streamCtx, rs.id, m.cfg.TranscribeLanguage, receiver)
	if err != nil {
		cancel()
		_ = rs.engine.Destroy()
		slog.Error("failed to start transcriber streaming", "error", err, "session_id", rs.id)
		return fmt.Errorf("start transcriber streaming: %w", err)
	}
	slog.Info("transcriber streaming started", "session_id", rs.id)

	rs.writer = writer
	rs.cancel = cancel
	rs.publisher = newPublisher(m.sinks, publishTimeout)
	rs.engine.OnStatus(func(s capture.Status) {
		m.publishCaption(rs, Update{Type: UpdateStatus, Status: string(s)})
	})
	rs.engine.OnError(func(err error) {
		m.publishCaption(rs, Update{Type: UpdateError, Error: err.Error()})
		// the device goroutine is still unwinding; stop from elsewhere
		go m.stopSession(rs, StopReasonCaptureError)
	})

	if err := rs.engine.Start(ctx); err != nil {
		cancel()
		_ = writer.Close()
		_ = rs.engine.Destroy()
		rs.publisher.close()
		return fmt.Errorf("start capture: %w", err)
	}

	group, groupCtx := errgroup.WithContext(streamCtx)
	rs.group = group
	group.Go(func() error {
		return m.pump(groupCtx, rs)
	})
	rs.maxTimer = time.AfterFunc(m.cfg.MaxSessionDuration(), func() {
		slog.Info("max session duration reached", "session_id", rs.id)
		m.stopSession(rs, StopReasonMaxDuration)
	})

	m.active = rs
	slog.Info("caption session activated", "session_id", rs.id, "capture_session_id", rs.engine.Session().ID)
	return nil
}

func (m *Manager) Pause() {
	if rs := m.current(); rs != nil {
		rs.engine.Pause()
	}
}

func (m *Manager) Resume() {
	if rs := m.current(); rs != nil {
		rs.engine.Resume()
	}
}

// Stop ends the active session and publishes its transcript.
func (m *Manager) Stop(reason string) error {
	rs := m.current()
	if rs == nil {
		slog.Warn("stop requested without active caption session", "reason", reason)
		return nil
	}
	return m.stopSession(rs, reason)
}

func (m *Manager) current() *runningSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) pump(ctx context.Context, rs *runningSession) error {
	statsTicker := time.NewTicker(pipelineStatsInterval)
	defer statsTicker.Stop()
	chunks := rs.engine.Chunks()
	slog.Info("audio pump started", "session_id", rs.id)
	for {
		select {
		case <-ctx.Done():
			m.logPipelineStats(rs, "audio pump stopped by context cancel")
			return nil
		case <-statsTicker.C:
			m.logPipelineStats(rs, "audio pipeline stats")
		case chunk, ok := <-chunks:
			if !ok {
				m.logPipelineStats(rs, "audio pump stopped: capture closed")
				return nil
			}
			if rs.tracker.Observe(chunk) == vad.EventSilence {
				rs.silenceEvents.Add(1)
				if m.cfg.VADCommitOnSilence {
					m.applyCaption(rs, rs.stabilizer.SettlePending(), false)
				}
			}
			if err := rs.writer.Write(chunk.PCM()); err != nil {
				slog.Error("failed to write pcm to transcriber stream", "error", err, "session_id", rs.id, "timestamp_ms", chunk.TimestampMs)
				go m.stopSession(rs, StopReasonTranscriberError)
				return err
			}
			rs.writtenChunks.Add(1)
		}
	}
}

func (m *Manager) logPipelineStats(rs *runningSession, msg string) {
	stats := rs.engine.Stats()
	slog.Info(msg,
		"session_id", rs.id,
		"emitted_chunks", stats.EmittedChunks,
		"dropped_chunks", stats.DroppedChunks,
		"ignored_frames", stats.IgnoredFrames,
		"written_chunks", rs.writtenChunks.Load(),
		"silence_events", rs.silenceEvents.Load(),
		"in_speech", rs.tracker.InSpeech())
}

func (m *Manager) stopSession(rs *runningSession, reason string) error {
	m.mu.Lock()
	if m.active != rs || !rs.stopped.CompareAndSwap(false, true) {
		m.mu.Unlock()
		return nil
	}
	m.active = nil
	m.mu.Unlock()
	defer close(rs.done)

	slog.Info("stopping caption session", "session_id", rs.id, "reason", reason)
	rs.maxTimer.Stop()

	var errs []error
	if err := rs.engine.Destroy(); err != nil {
		errs = append(errs, fmt.Errorf("release capture: %w", err))
	}
	// the pump exits once the chunk channel is closed
	if err := rs.group.Wait(); err != nil {
		slog.Warn("audio pump ended with error", "error", err, "session_id", rs.id)
	}
	if err := rs.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transcriber stream: %w", err))
	}
	rs.cancel()

	m.applyCaption(rs, rs.stabilizer.SettlePending(), true)
	rs.publisher.close()
	m.finalizeSession(rs, reason)
	return errors.Join(errs...)
}

func (m *Manager) finalizeSession(rs *runningSession, reason string) {
	endedAt := m.now()
	rs.segMu.Lock()
	segments := append([]Segment(nil), rs.segments...)
	rs.segMu.Unlock()

	meta := transcriptMeta{
		SessionID:     rs.id,
		Language:      m.cfg.TranscribeLanguage,
		CaptureDriver: m.cfg.CaptureDriver,
		Timezone:      m.cfg.TranscriptTimezone,
		StopReason:    reason,
	}
	transcript := Transcript{
		SessionID:  rs.id,
		StartedAt:  rs.startedAt,
		EndedAt:    endedAt,
		StopReason: reason,
		Segments:   segments,
		Filename:   transcriptFilename(rs.id, rs.startedAt, m.loc),
		Body:       buildTranscriptText(meta, rs.startedAt, endedAt, m.loc, segments),
		Payload:    buildTranscriptWebhookPayload(meta, rs.startedAt, endedAt, m.loc, segments),
	}

	ctx, cancel := context.WithTimeout(context.Background(), transcriptTimeout)
	defer cancel()
	_ = m.sinks.PublishTranscript(ctx, transcript)
	slog.Info("caption session finalized", "session_id", rs.id, "segments", len(segments), "reason", reason)
}

// applyCaption records newly committed text and publishes the caption.
func (m *Manager) applyCaption(rs *runningSession, c stabilizer.Caption, isFinal bool) {
	if c.Committed == "" && !isFinal {
		return
	}
	if c.Committed != "" {
		m.appendSegment(rs, c.Committed)
	}
	m.publishCaption(rs, Update{
		Type:      UpdateCaption,
		Stable:    c.Stable,
		Unstable:  c.Unstable,
		Committed: c.Committed,
		IsFinal:   isFinal,
	})
}

func (m *Manager) appendSegment(rs *runningSession, text string) {
	spokenAt := m.now()
	rs.segMu.Lock()
	defer rs.segMu.Unlock()
	rs.segments = append(rs.segments, Segment{
		Index:    len(rs.segments),
		OffsetMs: spokenAt.Sub(rs.startedAt).Milliseconds(),
		SpokenAt: spokenAt,
		Text:     text,
	})
}

func (m *Manager) publishCaption(rs *runningSession, u Update) {
	u.SessionID = rs.id
	u.TimestampMs = m.now().Sub(rs.startedAt).Milliseconds()
	rs.publisher.enqueue(u)
}

func (m *Manager) handleHypothesis(rs *runningSession, h transcriber.Hypothesis) {
	if rs.stopped.Load() {
		return
	}
	if h.IsFinal {
		m.applyCaption(rs, rs.stabilizer.Finalize(h.Text), true)
		return
	}
	c := rs.stabilizer.Stabilize(h.Text)
	if c.Committed != "" {
		m.appendSegment(rs, c.Committed)
	}
	m.publishCaption(rs, Update{
		Type:      UpdateCaption,
		Stable:    c.Stable,
		Unstable:  c.Unstable,
		Committed: c.Committed,
	})
}

type resultReceiver struct {
	manager *Manager
	session *runningSession
	mu      sync.Mutex
}

func (r *resultReceiver) OnHypothesis(h transcriber.Hypothesis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manager.handleHypothesis(r.session, h)
}

func (r *resultReceiver) OnError(err error) {
	if errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "operation was cancelled") {
		slog.Info("transcriber stream canceled", "error", err, "session_id", r.session.id)
		return
	}
	slog.Error("transcriber stream error", "error", err, "session_id", r.session.id)
	go r.manager.stopSession(r.session, StopReasonTranscriberError)
}
