package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	counter   int64
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a process-local Store for single-instance deployments
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store with a background sweep that
// evicts expired entries every minute.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go s.sweep(time.Minute)
	return s
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for k, e := range s.entries {
				if e.expired(now) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Get retrieves the raw value for a key, or ErrMiss.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.expired(s.now()) {
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores a value under a key with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes the given keys.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.mu.Unlock()
	return nil
}

// DeletePrefix removes every key that starts with the given prefix.
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
	return nil
}

// Increment atomically bumps a counter, creating it with the TTL if absent.
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		e = &memoryEntry{}
		if ttl > 0 {
			e.expiresAt = now.Add(ttl)
		}
		s.entries[key] = e
	}
	e.counter++
	return e.counter, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
