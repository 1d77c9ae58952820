package memory

// Package memory provides in-process KeyValue implementations: a real store
// for tests and headless runs, and an always-unavailable store that models a
// runtime with no durable storage at all.

import (
	"context"
	"sync"
	"time"

	"github.com/civicloop/portal-auth/internal/ports"
)

// KeyValue is a mutex-guarded in-memory store with per-key expiry.
type KeyValue struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewKeyValue creates an empty in-memory store.
func NewKeyValue() *KeyValue {
	return &KeyValue{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewKeyValueAt creates a store with an injected clock for tests.
func NewKeyValueAt(now func() time.Time) *KeyValue {
	kv := NewKeyValue()
	kv.now = now
	return kv
}

func (s *KeyValue) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *KeyValue) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", ports.ErrNotFound
	}
	return e.value, nil
}

func (s *KeyValue) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *KeyValue) Available() bool { return true }

// Unavailable models a runtime without storage (e.g. server-side
// execution). Writes are no-ops, reads report ErrNotFound, and no
// operation ever errors otherwise.
type Unavailable struct{}

func (Unavailable) Set(context.Context, string, string, time.Duration) error { return nil }

func (Unavailable) Get(context.Context, string) (string, error) { return "", ports.ErrNotFound }

func (Unavailable) Delete(context.Context, string) error { return nil }

func (Unavailable) Available() bool { return false }
