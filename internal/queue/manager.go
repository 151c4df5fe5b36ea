// Package queue implements the in-memory journal queue and the worker pool
// that applies machine operation records to the journal.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/vending-machine-simulator/internal/config"
	"github.com/fairyhunter13/vending-machine-simulator/internal/model"
	"github.com/fairyhunter13/vending-machine-simulator/internal/obs"
	"github.com/fairyhunter13/vending-machine-simulator/internal/vending"
)

// Sink receives processed journal events.
type Sink interface {
	Append(ev model.Event)
}

// Manager coordinates workers processing queued events and scaling.
type Manager struct {
	cfg    config.Config
	q      *Queue
	sink   Sink
	seq    atomic.Uint64
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	workerCancels []context.CancelFunc
}

// NewManager constructs a Manager with the given config, queue, and sink.
func NewManager(cfg config.Config, q *Queue, sink Sink) *Manager {
	return &Manager{cfg: cfg, q: q, sink: sink, now: time.Now}
}

// Start begins processing and autoscaling in the background.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.addWorkers(m.cfg.InitialWorkerCount)
	go m.scaler()
}

// Stop cancels background routines and stops workers.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workerCancels {
		c()
	}
	m.workerCancels = nil
	m.mu.Unlock()
}

// scaler adjusts worker count based on backlog and configuration.
func (m *Manager) scaler() {
	t := time.NewTicker(m.cfg.ScaleInterval)
	defer t.Stop()
	idleTicks := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			backlog := m.q.BacklogSize()
			wc := m.WorkerCount()
			if backlog > wc*m.cfg.ScaleUpBacklogPerWorker && wc < m.cfg.WorkerMax {
				m.addWorkers(1)
				idleTicks = 0
				continue
			}
			if backlog == 0 {
				idleTicks++
				if idleTicks >= m.cfg.ScaleDownIdleTicks && wc > m.cfg.WorkerMin {
					m.removeWorkers(1)
					idleTicks = 0
				}
			} else {
				idleTicks = 0
			}
		}
	}
}

// addWorkers spawns n workers.
func (m *Manager) addWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workerCancels = append(m.workerCancels, cancel)
		go m.worker(wctx)
	}
	obs.Logger.Debug("workers_scaled", "worker_count", len(m.workerCancels))
}

// removeWorkers stops up to n workers.
func (m *Manager) removeWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n = min(n, len(m.workerCancels))
	for i := 0; i < n; i++ {
		c := m.workerCancels[len(m.workerCancels)-1]
		m.workerCancels = m.workerCancels[:len(m.workerCancels)-1]
		c()
	}
	obs.Logger.Debug("workers_scaled", "worker_count", len(m.workerCancels))
}

// worker drains events from the queue into the sink.
func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.q.Out():
			m.sink.Append(ev)
			m.q.MarkProcessed()
		}
	}
}

// Recorder returns a vending.Recorder that journals every operation of the
// machine with the given id.
func (m *Manager) Recorder(machineID string) vending.Recorder {
	return vending.RecorderFunc(func(r vending.Record) {
		ev := model.Event{
			MachineID: machineID,
			Sequence:  m.NextSequence(),
			Operation: string(r.Operation),
			Result:    r.Result.String(),
			Mode:      r.Mode.String(),
			Balance:   r.Balance,
			At:        m.now().UTC(),
		}
		if !m.Enqueue(ev) {
			obs.Logger.Warn("journal_event_dropped", obs.MachineID(machineID), obs.Operation(ev.Operation))
		}
	})
}

// Enqueue proxies to the underlying queue.
func (m *Manager) Enqueue(ev model.Event) bool { return m.q.Enqueue(ev) }

// BacklogSize returns pending items in the queue.
func (m *Manager) BacklogSize() int { return m.q.BacklogSize() }

// QueueDepth returns backlog plus buffered output items.
func (m *Manager) QueueDepth() int { return m.q.QueueDepth() }

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workerCancels)
}

// NextSequence returns the next journal sequence number, starting at 1.
func (m *Manager) NextSequence() uint64 { return m.seq.Add(1) }

// IsShuttingDown reports whether new enqueues are rejected.
func (m *Manager) IsShuttingDown() bool { return m.q.IsShuttingDown() }

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

// Stats exposes the underlying queue counters.
func (m *Manager) Stats() Stats { return m.q.Stats() }

// DrainUntil blocks until every enqueued event has been processed or ctx is
// done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		st := m.q.Stats()
		if st.Backlog == 0 && st.Depth == 0 && st.Enqueued == st.Processed {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
