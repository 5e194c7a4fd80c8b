package queue

import (
	"sync"

	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/internal/model"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
	"github.com/novamart/nova-storefront/pkg/metrics"
)

// pendingKey is the document name of the persisted queue.
const pendingKey = "chat_pending"

// Store is the durable pending queue. Every mutation rewrites the whole
// persisted document, and every mutation is keyed by the entry's timestamp
// identity; remove-if-present is the only removal primitive, so racing
// flushes cannot resurrect a delivered item.
type Store struct {
	mu    sync.Mutex
	items []model.PendingItem
	disk  *storage.Store
	log   *logger.Logger
}

// NewStore rehydrates the pending queue from the state directory. A missing
// or corrupt document yields an empty queue.
func NewStore(disk *storage.Store, log *logger.Logger) *Store {
	s := &Store{disk: disk, log: log}
	if !disk.Load(pendingKey, &s.items) {
		s.items = nil
	}
	metrics.ChatPendingDepth.Set(float64(len(s.items)))
	return s
}

// Append inserts item into the queue. An existing item with the same entry
// timestamp is replaced, never duplicated.
func (s *Store) Append(item model.PendingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Entry.Timestamp == item.Entry.Timestamp {
			s.items[i] = item
			s.persistLocked()
			return
		}
	}
	s.items = append(s.items, item)
	s.persistLocked()
}

// Remove deletes the item with the given timestamp identity. Removing an
// absent item is a no-op; the return value reports whether anything was
// actually removed.
func (s *Store) Remove(ts int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Entry.Timestamp == ts {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

// Fail records a failed delivery attempt for the item with the given
// timestamp. Crossing the attempt ceiling removes the item in the same
// critical section; otherwise the attempt counter and next eligible time
// are updated in place. Reports whether the item was dropped.
func (s *Store) Fail(ts int64, attempts int, nextAttempt int64, maxAttempts int) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Entry.Timestamp != ts {
			continue
		}
		if attempts > maxAttempts {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persistLocked()
			return true
		}
		s.items[i].Attempts = attempts
		s.items[i].NextAttempt = nextAttempt
		s.persistLocked()
		return false
	}
	return false
}

// Due returns a copy of every item whose next eligible time has elapsed
// (or was never set).
func (s *Store) Due(nowMillis int64) []model.PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.PendingItem
	for _, it := range s.items {
		if it.NextAttempt == 0 || it.NextAttempt <= nowMillis {
			due = append(due, it)
		}
	}
	return due
}

// Snapshot returns a copy of the whole queue in insertion order.
func (s *Store) Snapshot() []model.PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PendingItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len reports the number of pending items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) persistLocked() {
	if err := s.disk.Save(pendingKey, s.items); err != nil {
		s.log.Warn("failed to persist pending queue", zap.Error(err))
	}
	metrics.ChatPendingDepth.Set(float64(len(s.items)))
}
