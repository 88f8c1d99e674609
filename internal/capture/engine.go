package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/jimakun/internal/audio"
	"github.com/google/uuid"
)

// Engine drives one capture device through the session state machine and
// emits converted chunks on a bounded channel.
type Engine struct {
	driver   Driver
	cfg      Config
	recorder Recorder
	now      func() time.Time

	mu        sync.RWMutex
	session   Session
	stream    Stream
	starting  bool
	inited    bool
	destroyed bool
	chunks    chan audio.Chunk
	onStatus  func(Status)
	onError   func(error)

	// serializes timestamping and sends so chunk order matches capture order
	emitMu  sync.Mutex
	lastTs  int64
	release sync.WaitGroup

	emitted atomic.Int64
	dropped atomic.Int64
	ignored atomic.Int64
}

type Option func(*Engine)

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

type EngineFactory func() *Engine

func NewEngine(driver Driver, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		driver: driver,
		cfg:    cfg,
		now:    time.Now,
		chunks: make(chan audio.Chunk, cfg.QueueSize),
		session: Session{
			Status: StatusIdle,
			Config: cfg,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Chunks() <-chan audio.Chunk {
	return e.chunks
}

func (e *Engine) OnStatus(fn func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStatus = fn
}

func (e *Engine) OnError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Status
}

func (e *Engine) Session() Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

func (e *Engine) Stats() Stats {
	return Stats{
		EmittedChunks: e.emitted.Load(),
		DroppedChunks: e.dropped.Load(),
		IgnoredFrames: e.ignored.Load(),
	}
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		slog.Warn("capture start ignored: engine destroyed")
		return nil
	}
	if e.starting || e.session.Status != StatusIdle {
		status, starting := e.session.Status, e.starting
		e.mu.Unlock()
		slog.Warn("capture start ignored", "status", status, "starting", starting)
		return nil
	}
	e.starting = true
	initedHere := !e.inited
	e.mu.Unlock()

	stream, err := e.acquire(ctx, initedHere)

	e.mu.Lock()
	e.starting = false
	if err != nil {
		if initedHere {
			e.inited = false
		}
		classified := Classify(err)
		e.session.Status = StatusError
		onStatus, onError := e.onStatus, e.onError
		e.mu.Unlock()
		slog.Error("capture start failed", "error", err, "device_id", e.cfg.DeviceID)
		notifyStatus(onStatus, StatusError)
		if onError != nil {
			onError(classified)
		}
		return classified
	}
	if e.destroyed {
		e.mu.Unlock()
		_ = stream.Close()
		slog.Warn("capture engine destroyed while starting; stream released")
		return nil
	}
	e.inited = true
	e.stream = stream
	e.session.ID = uuid.NewString()
	e.session.StartTime = e.now()
	e.session.Status = StatusRecording
	e.lastTs = 0
	onStatus := e.onStatus
	sessionID := e.session.ID
	e.mu.Unlock()

	slog.Info("capture started", "session_id", sessionID, "device_id", e.cfg.DeviceID, "sample_rate", e.cfg.SampleRate, "channels", e.cfg.ChannelCount)
	notifyStatus(onStatus, StatusRecording)
	return nil
}

func (e *Engine) acquire(ctx context.Context, initHere bool) (Stream, error) {
	if initHere {
		if err := e.driver.Init(); err != nil {
			return nil, err
		}
	}
	stream, err := e.driver.Open(ctx, Constraints{
		DeviceID:         e.cfg.DeviceID,
		SampleRate:       e.cfg.SampleRate,
		ChannelCount:     e.cfg.ChannelCount,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}, Handler{
		OnFrame: e.handleFrame,
		OnError: e.handleDeviceError,
	})
	if err != nil {
		if initHere {
			if termErr := e.driver.Terminate(); termErr != nil {
				slog.Warn("failed to terminate driver after open failure", "error", termErr)
			}
		}
		return nil, err
	}
	return stream, nil
}

func (e *Engine) Pause() {
	e.mu.Lock()
	if e.session.Status != StatusRecording {
		status := e.session.Status
		e.mu.Unlock()
		slog.Warn("capture pause ignored", "status", status)
		return
	}
	e.session.Status = StatusPaused
	stream, onStatus := e.stream, e.onStatus
	e.mu.Unlock()

	if err := stream.Pause(); err != nil {
		slog.Warn("failed to suspend capture stream; frames are still gated", "error", err)
	}
	notifyStatus(onStatus, StatusPaused)
}

func (e *Engine) Resume() {
	e.mu.Lock()
	if e.session.Status != StatusPaused {
		status := e.session.Status
		e.mu.Unlock()
		slog.Warn("capture resume ignored", "status", status)
		return
	}
	stream := e.stream
	e.mu.Unlock()

	if err := stream.Resume(); err != nil {
		slog.Warn("failed to resume capture stream", "error", err)
	}

	e.mu.Lock()
	if e.session.Status != StatusPaused {
		e.mu.Unlock()
		return
	}
	e.session.Status = StatusRecording
	onStatus := e.onStatus
	e.mu.Unlock()
	notifyStatus(onStatus, StatusRecording)
}

// Stop releases the device. It runs from recording, paused and error; the
// release path always completes before Stop returns.
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.session.Status {
	case StatusRecording, StatusPaused, StatusError:
	default:
		status := e.session.Status
		e.mu.Unlock()
		slog.Warn("capture stop ignored", "status", status)
		return nil
	}
	e.session.Status = StatusStopped
	stream := e.takeStreamLocked()
	onStatus := e.onStatus
	e.mu.Unlock()

	err := e.releaseStream(stream)
	slog.Info("capture stopped", "emitted_chunks", e.emitted.Load(), "dropped_chunks", e.dropped.Load())
	notifyStatus(onStatus, StatusStopped)
	return err
}

// Destroy stops the engine if needed, terminates the driver context and
// closes the chunk channel. The engine is unusable afterwards.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	var stream Stream
	stopped := false
	switch e.session.Status {
	case StatusRecording, StatusPaused, StatusError:
		e.session.Status = StatusStopped
		stream = e.takeStreamLocked()
		stopped = true
	}
	inited := e.inited
	e.inited = false
	onStatus := e.onStatus
	e.onStatus = nil
	e.onError = nil
	close(e.chunks)
	e.mu.Unlock()

	var errs []error
	if stopped {
		errs = append(errs, e.releaseStream(stream))
		notifyStatus(onStatus, StatusStopped)
	}
	if inited {
		errs = append(errs, e.driver.Terminate())
	}
	slog.Info("capture engine destroyed")
	return errors.Join(errs...)
}

func (e *Engine) takeStreamLocked() Stream {
	stream := e.stream
	e.stream = nil
	return stream
}

func (e *Engine) releaseStream(stream Stream) error {
	var errs []error
	if stream != nil {
		errs = append(errs, stream.Close())
	}
	// a device error may still be closing its stream on another goroutine
	e.release.Wait()
	if e.recorder != nil {
		errs = append(errs, e.recorder.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) handleFrame(frame audio.RawFrame) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session.Status != StatusRecording {
		e.ignored.Add(1)
		return
	}
	if frame.Channels <= 0 {
		frame.Channels = 1
	}
	if frame.SampleRate <= 0 {
		frame.SampleRate = e.cfg.SampleRate
	}
	samples := audio.Convert(frame.Samples, frame.SampleRate, frame.Channels)
	if e.recorder != nil {
		e.recorder.Record(frame)
	}
	if len(samples) == 0 {
		return
	}

	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	ts := e.now().Sub(e.session.StartTime).Milliseconds()
	if ts < e.lastTs {
		ts = e.lastTs
	}
	e.lastTs = ts
	chunk := audio.Chunk{
		Samples:     samples,
		SampleRate:  audio.TargetSampleRate,
		TimestampMs: ts,
	}
	select {
	case e.chunks <- chunk:
		e.emitted.Add(1)
	default:
		if n := e.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("chunk queue full; dropping chunk", "dropped_chunks", n, "queue_size", cap(e.chunks))
		}
	}
}

// handleDeviceError handles a device failure reported after start.
func (e *Engine) handleDeviceError(err error) {
	e.mu.Lock()
	if e.session.Status != StatusRecording && e.session.Status != StatusPaused {
		e.mu.Unlock()
		slog.Warn("device error ignored", "error", err)
		return
	}
	e.session.Status = StatusError
	stream := e.takeStreamLocked()
	onStatus, onError := e.onStatus, e.onError
	if stream != nil {
		e.release.Add(1)
	}
	e.mu.Unlock()

	classified := Classify(err)
	slog.Error("capture device failed mid-session", "error", err)
	if stream != nil {
		// the driver may be reporting from the goroutine Close waits on
		go func() {
			defer e.release.Done()
			if closeErr := stream.Close(); closeErr != nil {
				slog.Warn("failed to close stream after device error", "error", closeErr)
			}
		}()
	}
	notifyStatus(onStatus, StatusError)
	if onError != nil {
		onError(classified)
	}
}

func notifyStatus(fn func(Status), s Status) {
	if fn != nil {
		fn(s)
	}
}
