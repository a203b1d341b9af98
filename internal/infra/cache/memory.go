package cache

import (
	"context"
	"sync"
	"time"

	"hubgate/internal/domain"
)

type memoryEntry struct {
	snap      domain.Snapshot
	expiresAt time.Time
}

// MemoryStore keeps snapshots in process. Expired entries are dropped lazily
// on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.SnapshotKey]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[domain.SnapshotKey]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for expiry.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Get(_ context.Context, key domain.SnapshotKey) (*domain.Snapshot, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	snap := domain.Snapshot{Devices: domain.CloneDevices(entry.snap.Devices), SyncedAt: entry.snap.SyncedAt}
	return &snap, true, nil
}

// Put stores a copy of snap. A ttl of zero never expires.
func (s *MemoryStore) Put(_ context.Context, key domain.SnapshotKey, snap domain.Snapshot, ttl time.Duration) error {
	entry := memoryEntry{
		snap: domain.Snapshot{Devices: domain.CloneDevices(snap.Devices), SyncedAt: snap.SyncedAt},
	}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key domain.SnapshotKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
