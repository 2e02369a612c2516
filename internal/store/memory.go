package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps collections in memory. It stores encoded bytes so that
// decoding behaves exactly as it does for files.
type MemoryBackend struct {
	mu    sync.RWMutex
	data  map[string][]byte
	locks *namedLocks
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:  make(map[string][]byte),
		locks: newNamedLocks(),
	}
}

// NewMemory is a shorthand for a Store over a fresh MemoryBackend.
func NewMemory() *Store {
	return New(NewMemoryBackend(), DefaultLockTimeout)
}

func (b *MemoryBackend) Lock(ctx context.Context, name string) (func(), error) {
	return b.locks.acquire(ctx, name)
}

func (b *MemoryBackend) Load(name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Save(name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[name] = append([]byte(nil), data...)
	return nil
}
