// Package store persists revoked session ids so that signed tokens can be
// invalidated before they expire.
package store

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

// Revocations records session ids that must no longer authenticate.
type Revocations interface {
	// Revoke marks id as revoked until the given time. Entries past that
	// time may be dropped since the token would have expired anyway.
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
	// Prune drops entries whose until time is at or before now and reports
	// how many were removed.
	Prune(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// DatabaseFile is the SQLite file name used by InitStore.
const DatabaseFile = "authgate.db"

// InitStore opens the SQLite store in dir.
func InitStore(dir string) (*SQLiteStore, error) {
	return NewSQLiteStore(filepath.Join(dir, DatabaseFile))
}

// MemoryStore keeps revocations in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryStore) Revoke(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = until
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.revoked[id]
	if !ok {
		return false, nil
	}
	return until.After(m.now()), nil
}

func (m *MemoryStore) Prune(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, until := range m.revoked {
		if !until.After(now) {
			delete(m.revoked, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }
