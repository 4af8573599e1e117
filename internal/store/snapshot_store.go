package store

import (
	"sync"
	"sync/atomic"

	"winsentry/internal/model"

	"github.com/google/uuid"
)

// SnapshotStore holds the latest published snapshot. Readers always see a
// complete snapshot: publication is a single pointer swap.
type SnapshotStore interface {
	Latest() *model.Snapshot
	// Publish stamps the next sequence number on snap and makes it the latest.
	// snap must not be modified afterwards.
	Publish(snap *model.Snapshot) *model.Snapshot
	// Subscribe returns a channel that always yields the most recent snapshot
	// not yet received; slow subscribers skip intermediate ones.
	Subscribe() (id string, updates <-chan *model.Snapshot)
	Unsubscribe(id string)
}

type inMemorySnapshotStore struct {
	latest atomic.Pointer[model.Snapshot]
	seq    atomic.Uint64

	mu          sync.Mutex
	subscribers map[string]chan *model.Snapshot
}

func NewInMemorySnapshotStore() SnapshotStore {
	return &inMemorySnapshotStore{
		subscribers: make(map[string]chan *model.Snapshot),
	}
}

func (s *inMemorySnapshotStore) Latest() *model.Snapshot {
	return s.latest.Load()
}

func (s *inMemorySnapshotStore) Publish(snap *model.Snapshot) *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Sequence = s.seq.Add(1)
	s.latest.Store(snap)

	for _, ch := range s.subscribers {
		// drop the stale value so the new one always fits
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	return snap
}

func (s *inMemorySnapshotStore) Subscribe() (string, <-chan *model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan *model.Snapshot, 1)
	if snap := s.latest.Load(); snap != nil {
		ch <- snap
	}
	s.subscribers[id] = ch
	return id, ch
}

func (s *inMemorySnapshotStore) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}
