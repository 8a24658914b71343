package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store suitable for development
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type memoryEntry struct {
	values    map[string]any
	createdAt time.Time
	expiresAt time.Time
}

// NewMemoryStore creates a memory store that sweeps expired sessions every interval.
// A non-positive interval disables the sweeper.
func NewMemoryStore(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		s.wg.Add(1)
		go s.sweep(interval)
	}
	return s
}

// Get returns a copy of the stored session
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, ErrSessionExpired
	}
	return Restore(id, maps.Clone(entry.values), entry.createdAt, entry.expiresAt), nil
}

// Set stores a snapshot of sess
func (s *MemoryStore) Set(_ context.Context, sess *Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID] = memoryEntry{
		values:    sess.Values(),
		createdAt: sess.CreatedAt,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a session
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Close stops the sweeper
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

// Count returns the number of stored sessions
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) sweep(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
