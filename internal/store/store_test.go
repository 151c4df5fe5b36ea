package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/vending-machine-simulator/internal/model"
	"github.com/fairyhunter13/vending-machine-simulator/internal/vending"
)

func sequences(evs []model.Event) []uint64 {
	out := make([]uint64, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Sequence)
	}
	return out
}

func TestStorePutGetDelete(t *testing.T) {
	s := New(0, 0)
	m := vending.New()
	require.NoError(t, s.Put("a", m))
	assert.ErrorIs(t, s.Put("a", vending.New()), ErrExists)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Zero(t, s.Len())
}

func TestStoreCapacity(t *testing.T) {
	s := New(2, 0)
	require.NoError(t, s.Put("b", vending.New()))
	require.NoError(t, s.Put("a", vending.New()))
	assert.ErrorIs(t, s.Put("c", vending.New()), ErrCapacity)
	assert.Equal(t, []string{"a", "b"}, s.List())

	s.Delete("a")
	assert.NoError(t, s.Put("c", vending.New()))
}

func TestStoreJournalOrdering(t *testing.T) {
	s := New(0, 0)
	require.NoError(t, s.Put("m", vending.New()))
	for _, seq := range []uint64{2, 5, 1, 4, 3, 4} {
		s.Append(model.Event{MachineID: "m", Sequence: seq})
	}
	evs, err := s.Events("m", 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, sequences(evs))

	evs, err = s.Events("m", 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, sequences(evs))
}

func TestStoreJournalLimit(t *testing.T) {
	s := New(0, 3)
	require.NoError(t, s.Put("m", vending.New()))
	for seq := uint64(1); seq <= 6; seq++ {
		s.Append(model.Event{MachineID: "m", Sequence: seq})
	}
	s.Append(model.Event{MachineID: "m", Sequence: 2})
	evs, _ := s.Events("m", 0)
	assert.Equal(t, []uint64{4, 5, 6}, sequences(evs))
}

func TestStoreJournalUnknownMachine(t *testing.T) {
	s := New(0, 0)
	s.Append(model.Event{MachineID: "ghost", Sequence: 1})
	s.Append(model.Event{Sequence: 2})
	_, err := s.Events("ghost", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreJournalDroppedWithMachine(t *testing.T) {
	s := New(0, 0)
	require.NoError(t, s.Put("m", vending.New()))
	s.Append(model.Event{MachineID: "m", Sequence: 1})
	s.Delete("m")
	require.NoError(t, s.Put("m", vending.New()))
	evs, err := s.Events("m", 0)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestStoreConcurrentAppends(t *testing.T) {
	s := New(0, 0)
	require.NoError(t, s.Put("p3", vending.New()))
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		seq := uint64(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(model.Event{MachineID: "p3", Sequence: seq})
		}()
	}
	wg.Wait()
	evs, err := s.Events("p3", 0)
	require.NoError(t, err)
	require.Len(t, evs, 100)
	for i, ev := range evs {
		assert.Equal(t, uint64(i+1), ev.Sequence)
	}
}
