package caption

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// publisher delivers caption updates to the sinks on its own goroutine so a
// slow sink never stalls the audio pump. Updates keep their order.
type publisher struct {
	sink    Sink
	timeout time.Duration

	mu     sync.Mutex
	queue  []Update
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newPublisher(sink Sink, timeout time.Duration) *publisher {
	p := &publisher{
		sink:    sink,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue never blocks. Updates after close are dropped.
func (p *publisher) enqueue(u Update) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		slog.Debug("caption update after publisher close dropped", "session_id", u.SessionID, "type", u.Type)
		return
	}
	p.queue = append(p.queue, u)
	p.mu.Unlock()
	p.signal()
}

// close delivers everything already queued, then returns.
func (p *publisher) close() {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()
	if !already {
		p.signal()
	}
	<-p.done
}

func (p *publisher) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *publisher) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		closed := p.closed
		p.mu.Unlock()

		for _, u := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			_ = p.sink.PublishCaption(ctx, u)
			cancel()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-p.wake
	}
}
