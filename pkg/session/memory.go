package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore is the default in-memory session backend. It holds records
// in a single process-local map and enforces expiry lazily: an expired
// record is removed by the Get call that discovers it. There is no
// background sweep.
//
// MemoryStore is not suitable for multi-process deployments; use a shared
// backend such as S3Store there.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record
	closed  bool
}

type record struct {
	payload   Payload
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*record),
	}
}

// Get returns the payload for id if present and unexpired. An expired
// record is deleted and reported absent.
func (m *MemoryStore) Get(ctx context.Context, id string) (Payload, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, StoreClosedError{}
	}

	rec, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	if expired(rec.expiresAt, time.Now()) {
		delete(m.records, id)
		return nil, false, nil
	}

	// Copy so callers cannot mutate the stored payload.
	return maps.Clone(rec.payload), true, nil
}

// Set overwrites the record for id.
func (m *MemoryStore) Set(ctx context.Context, id string, payload Payload, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return StoreClosedError{}
	}

	m.records[id] = &record{
		payload:   maps.Clone(payload),
		expiresAt: expiresAt,
	}
	return nil
}

// Delete removes the record for id if present.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return StoreClosedError{}
	}

	delete(m.records, id)
	return nil
}

// Close releases the store. Further operations fail with StoreClosedError.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}

// Count returns the number of records currently held, including records
// whose expiry has passed but which no read has discovered yet. It exists
// for monitoring and tests.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// expired reports whether a record with the given expiry is stale at now.
// The zero time means the record never expires.
func expired(expiresAt time.Time, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}
