// Package store keeps the live machines and their operations journals.
package store

import (
	"errors"
	"slices"
	"sync"

	"github.com/fairyhunter13/vending-machine-simulator/internal/model"
	"github.com/fairyhunter13/vending-machine-simulator/internal/vending"
)

var (
	ErrNotFound = errors.New("machine not found")
	ErrExists   = errors.New("machine already exists")
	ErrCapacity = errors.New("machine capacity reached")
)

type entry struct {
	m       *vending.Machine
	journal []model.Event
}

type Store struct {
	mu           sync.RWMutex
	m            map[string]*entry
	maxMachines  int
	journalLimit int
}

// New creates a store holding at most maxMachines machines, each keeping its
// journalLimit newest events. Non-positive values disable the limit.
func New(maxMachines, journalLimit int) *Store {
	return &Store{
		m:            make(map[string]*entry),
		maxMachines:  maxMachines,
		journalLimit: journalLimit,
	}
}

func (s *Store) Put(id string, m *vending.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; ok {
		return ErrExists
	}
	if s.maxMachines > 0 && len(s.m) >= s.maxMachines {
		return ErrCapacity
	}
	s.m[id] = &entry{m: m}
	return nil
}

func (s *Store) Get(id string) (*vending.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[id]
	if !ok {
		return nil, false
	}
	return e.m, true
}

// Delete removes the machine and its journal.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return false
	}
	delete(s.m, id)
	return true
}

// List returns machine ids in lexical order.
func (s *Store) List() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Append adds ev to its machine's journal, keeping the journal ordered by
// sequence. Events for unknown machines and duplicate sequences are dropped.
func (s *Store) Append(ev model.Event) {
	if ev.MachineID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[ev.MachineID]
	if !ok {
		return
	}
	n := len(e.journal)
	if n == 0 || ev.Sequence > e.journal[n-1].Sequence {
		e.journal = append(e.journal, ev)
	} else {
		// workers may deliver out of order
		i, found := slices.BinarySearchFunc(e.journal, ev.Sequence, func(x model.Event, seq uint64) int {
			switch {
			case x.Sequence < seq:
				return -1
			case x.Sequence > seq:
				return 1
			}
			return 0
		})
		if found {
			return
		}
		if s.journalLimit > 0 && i == 0 && n >= s.journalLimit {
			// older than everything retained
			return
		}
		e.journal = slices.Insert(e.journal, i, ev)
	}
	if s.journalLimit > 0 && len(e.journal) > s.journalLimit {
		e.journal = slices.Clone(e.journal[len(e.journal)-s.journalLimit:])
	}
}

// Events returns up to limit newest events of a machine, oldest first.
// limit <= 0 returns the whole journal.
func (s *Store) Events(id string, limit int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	j := e.journal
	if limit > 0 && len(j) > limit {
		j = j[len(j)-limit:]
	}
	return slices.Clone(j), nil
}
