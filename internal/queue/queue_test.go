package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/vending-machine-simulator/internal/config"
	"github.com/fairyhunter13/vending-machine-simulator/internal/model"
	"github.com/fairyhunter13/vending-machine-simulator/internal/store"
	"github.com/fairyhunter13/vending-machine-simulator/internal/vending"
)

type memSink struct {
	mu  sync.Mutex
	evs []model.Event
}

func (s *memSink) Append(ev model.Event) {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
}

func (s *memSink) events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.evs...)
}

func testConfig() config.Config {
	return config.Config{
		InitialWorkerCount:      2,
		WorkerMin:               2,
		WorkerMax:               4,
		ScaleInterval:           50 * time.Millisecond,
		ScaleUpBacklogPerWorker: 100,
		ScaleDownIdleTicks:      6,
	}
}

func TestQueueNonBlockingEnqueue(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, q.Enqueue(model.Event{MachineID: "x", Sequence: uint64(i)}), "enqueue %d", i)
	}
	assert.Equal(t, uint64(1000), q.Stats().Enqueued)
	assert.Positive(t, q.BacklogSize())
}

func TestQueueFlushPreservesOrder(t *testing.T) {
	q := New(4)
	for i := 1; i <= 10; i++ {
		q.Enqueue(model.Event{Sequence: uint64(i)})
	}
	var got []uint64
	for len(got) < 10 {
		q.flush()
		for len(q.Out()) > 0 {
			got = append(got, (<-q.Out()).Sequence)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
	assert.Zero(t, q.BacklogSize())
}

func TestQueueShutdownIntake(t *testing.T) {
	q := New(1)
	q.CloseIntake()
	assert.True(t, q.IsShuttingDown())
	assert.False(t, q.Enqueue(model.Event{MachineID: "x"}))
	assert.Zero(t, q.Stats().Enqueued)
}

func TestManagerDrain(t *testing.T) {
	sink := &memSink{}
	mgr := NewManager(testConfig(), New(16), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)
	defer mgr.Stop()
	for i := 0; i < 100; i++ {
		mgr.Enqueue(model.Event{MachineID: "xx", Sequence: mgr.NextSequence()})
	}
	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelDrain()
	require.True(t, mgr.DrainUntil(ctxDrain))
	assert.Len(t, sink.events(), 100)
	st := mgr.Stats()
	assert.Equal(t, st.Enqueued, st.Processed)
}

func TestManagerRecorder(t *testing.T) {
	sink := &memSink{}
	mgr := NewManager(testConfig(), New(16), sink)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mgr.now = func() time.Time { return at }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)
	defer mgr.Stop()

	vm := vending.New(vending.WithRecorder(mgr.Recorder("vm-1")))
	vm.PutCoin2()
	vm.GiveProduct1(1)

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelDrain()
	require.True(t, mgr.DrainUntil(ctxDrain))

	evs := sink.events()
	require.Len(t, evs, 2)
	bySeq := map[uint64]model.Event{}
	for _, ev := range evs {
		bySeq[ev.Sequence] = ev
	}
	assert.Equal(t, model.Event{
		MachineID: "vm-1", Sequence: 1, Operation: "put_coin2",
		Result: "OK", Mode: "operation", Balance: 2, At: at,
	}, bySeq[1])
	assert.Equal(t, "INSUFFICIENT_PRODUCT", bySeq[2].Result)
}

func TestManagerRecorderAfterClose(t *testing.T) {
	sink := &memSink{}
	mgr := NewManager(testConfig(), New(16), sink)
	mgr.CloseIntake()
	vm := vending.New(vending.WithRecorder(mgr.Recorder("vm-1")))
	assert.Equal(t, vending.OK, vm.PutCoin1(), "journal failures never affect the machine")
	assert.Zero(t, mgr.Stats().Enqueued)
}

func TestJournalFollowsApplicationOrder(t *testing.T) {
	st := store.New(1, 2048)
	mgr := NewManager(testConfig(), New(16), st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)
	defer mgr.Stop()

	vm := vending.New(vending.WithRecorder(mgr.Recorder("vm-1")))
	require.NoError(t, st.Put("vm-1", vm))

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 0; i < vending.MaxCoins; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				vm.PutCoin1()
			}()
		}
		wg.Wait()
		require.Equal(t, vending.OK, vm.ReturnMoney())
	}

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDrain()
	require.True(t, mgr.DrainUntil(ctxDrain))

	evs, err := st.Events("vm-1", 0)
	require.NoError(t, err)
	require.Len(t, evs, 20*(vending.MaxCoins+1))
	prev := 0
	for i, ev := range evs {
		if ev.Operation == string(vending.OpReturnMoney) {
			assert.Zero(t, ev.Balance, "event %d", i)
			prev = 0
			continue
		}
		assert.Equal(t, prev+1, ev.Balance, "event %d seq %d", i, ev.Sequence)
		prev = ev.Balance
	}
}
