package store

import (
	"context"
	"fmt"
	"sync"
)

// namedLocks is a set of per-name binary semaphores whose acquisition can be
// abandoned through a context.
type namedLocks struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func newNamedLocks() *namedLocks {
	return &namedLocks{sems: make(map[string]chan struct{})}
}

func (l *namedLocks) acquire(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.sems[name]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[name] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-sem }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, ctx.Err())
	}
}
