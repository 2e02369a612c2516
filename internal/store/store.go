// Package store provides locked read/modify/write access to JSON-encoded
// collections. A collection is a single named document (an array or an
// object); every access to it goes through the collection's lock.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable is returned when a collection lock cannot be acquired in time.
	ErrUnavailable = errors.New("store unavailable")
	// ErrIO is returned when the backing medium fails to load or save a collection.
	ErrIO = errors.New("store i/o failure")
	// ErrCorrupt is returned when a collection's contents cannot be decoded.
	ErrCorrupt = errors.New("corrupt data")
)

// DefaultLockTimeout bounds how long a caller waits for a collection lock.
const DefaultLockTimeout = 5 * time.Second

// Backend holds the raw bytes of named collections and the locks guarding them.
//
// Lock must provide mutual exclusion between every caller touching the same
// name. Load returns (nil, nil) for a collection that does not exist yet.
// Save must replace the previous contents atomically.
type Backend interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
}

// Store encodes and decodes collections on top of a Backend.
type Store struct {
	backend     Backend
	lockTimeout time.Duration
}

// New creates a Store. A non-positive lockTimeout selects DefaultLockTimeout.
func New(backend Backend, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{backend: backend, lockTimeout: lockTimeout}
}

// Read decodes the named collection into v. A collection that does not exist
// leaves v untouched.
func (s *Store) Read(ctx context.Context, name string, v any) error {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	data, err := s.backend.Load(name)
	unlock()
	if err != nil {
		return err
	}
	return decode(name, data, v)
}

// Write replaces the named collection with the encoding of v.
func (s *Store) Write(ctx context.Context, name string, v any) error {
	data, err := encode(name, v)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()
	return s.backend.Save(name, data)
}

// ReadModifyWrite runs one critical section over the named collection: it
// decodes the current contents into v, calls fn, and saves v if fn succeeded.
// When fn returns an error nothing is written and that error is returned.
func (s *Store) ReadModifyWrite(ctx context.Context, name string, v any, fn func() error) error {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.backend.Load(name)
	if err != nil {
		return err
	}
	if err := decode(name, data, v); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}

	out, err := encode(name, v)
	if err != nil {
		return err
	}
	return s.backend.Save(name, out)
}

// Init creates the named collection with the encoding of empty unless it
// already exists.
func (s *Store) Init(ctx context.Context, name string, empty any) error {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.backend.Load(name)
	if err != nil {
		return err
	}
	if data != nil {
		return nil
	}
	out, err := encode(name, empty)
	if err != nil {
		return err
	}
	return s.backend.Save(name, out)
}

// lock bounds only the wait for the lock, not the critical section.
func (s *Store) lock(ctx context.Context, name string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	unlock, err := s.backend.Lock(lockCtx, name)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: lock %s: %v", ErrUnavailable, name, err)
	}
	return unlock, nil
}

func decode(name string, data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

func encode(name string, v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return data, nil
}
