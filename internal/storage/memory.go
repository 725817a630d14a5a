package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in a map. Used by tests and dry runs.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (b *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok, nil
}

func (b *MemoryBackend) ReadText(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	text, ok := b.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func (b *MemoryBackend) WriteText(_ context.Context, key, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = text
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}
