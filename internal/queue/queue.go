package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/vending-machine-simulator/internal/model"
	"github.com/fairyhunter13/vending-machine-simulator/internal/obs"
)

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Enqueued  uint64
	Processed uint64
	Backlog   int
	Depth     int
}

// Queue buffers journal events in an unbounded backlog and feeds them to
// workers through a bounded channel, so producers never block.
type Queue struct {
	mu           sync.Mutex
	backlog      []model.Event
	notify       chan struct{}
	out          chan model.Event
	shuttingDown atomic.Bool
	aboveMark    bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		out:    make(chan model.Event, outBuffer),
	}
}

// Start runs the pump loop until ctx is done.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.pump(ctx, highWatermark)
}

func (q *Queue) pump(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.flush()
		if highWatermark > 0 {
			q.checkWatermark(highWatermark)
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// checkWatermark logs once per crossing, in either direction.
func (q *Queue) checkWatermark(mark int) {
	size := q.BacklogSize()
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case size > mark && !q.aboveMark:
		q.aboveMark = true
		obs.Logger.Warn("journal_backlog_high", "backlog_size", size, "high_watermark", mark)
	case size <= mark && q.aboveMark:
		q.aboveMark = false
		obs.Logger.Info("journal_backlog_recovered", "backlog_size", size, "high_watermark", mark)
	}
}

// flush moves as many backlog items as fit into the output buffer.
func (q *Queue) flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(len(q.backlog), cap(q.out)-len(q.out))
	if n <= 0 {
		return
	}
	for _, ev := range q.backlog[:n] {
		q.out <- ev
	}
	rest := copy(q.backlog, q.backlog[n:])
	clear(q.backlog[rest:])
	q.backlog = q.backlog[:rest]
}

// Enqueue appends an event into the backlog and wakes the pump. It never
// blocks and returns false once intake is closed.
func (q *Queue) Enqueue(ev model.Event) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, ev)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel of events.
func (q *Queue) Out() <-chan model.Event { return q.out }

// BacklogSize returns the number of enqueued-but-not-yet-output events.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// QueueDepth returns backlog plus buffered output items.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog) + len(q.out)
}

// MarkProcessed increases the processed counter.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	backlog := len(q.backlog)
	depth := backlog + len(q.out)
	q.mu.Unlock()
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Backlog:   backlog,
		Depth:     depth,
	}
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
