// Package state holds the latest monitor snapshot shared between the capture
// loop and the HTTP handlers.
package state

import (
	"SkiMonitor/internal/entity"
	"sync"
	"sync/atomic"
)

type IStore interface {
	Load() entity.Snapshot
	Publish(snapshot entity.Snapshot)
	Subscribe() (<-chan entity.Snapshot, func())
}

// Store has a single writer and any number of readers. Readers always see a
// whole snapshot, never a mix of two publishes.
type Store struct {
	current atomic.Pointer[entity.Snapshot]

	mu          sync.Mutex
	subscribers map[uint64]chan entity.Snapshot
	nextID      uint64
}

func New(initial entity.Snapshot) *Store {
	s := &Store{
		subscribers: make(map[uint64]chan entity.Snapshot),
	}
	s.current.Store(&initial)

	return s
}

func (s *Store) Load() entity.Snapshot {
	return *s.current.Load()
}

func (s *Store) Publish(snapshot entity.Snapshot) {
	s.current.Store(&snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subscribers {
		// keep only the newest value for slow readers
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// Subscribe returns a feed of published snapshots and a func that ends the
// subscription. The feed is closed after cancel.
func (s *Store) Subscribe() (<-chan entity.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	ch := make(chan entity.Snapshot, 1)
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.subscribers, id)
			close(ch)
		})
	}

	return ch, cancel
}
