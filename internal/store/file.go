package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileBackend keeps each collection in its own file under a directory.
//
// Locking is two-level: a per-name semaphore serializes goroutines of this
// process, and an advisory flock on "<name>.lock" serializes processes.
type FileBackend struct {
	dir   string
	local *namedLocks
}

// NewFileBackend creates a FileBackend rooted at dir, creating dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory %s: %v", ErrIO, dir, err)
	}
	return &FileBackend{dir: dir, local: newNamedLocks()}, nil
}

// Dir returns the directory holding the collection files.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Path returns the file path of the named collection.
func (b *FileBackend) Path(name string) string {
	return filepath.Join(b.dir, name)
}

func (b *FileBackend) Lock(ctx context.Context, name string) (func(), error) {
	release, err := b.local.acquire(ctx, name)
	if err != nil {
		return nil, err
	}

	fl := flock.New(b.Path(name) + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		release()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}

	return func() {
		_ = fl.Unlock()
		release()
	}, nil
}

func (b *FileBackend) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, name, err)
	}
	return data, nil
}

// Save writes data to a temporary file next to the target and renames it
// into place, so readers observe either the old or the new contents.
func (b *FileBackend) Save(name string, data []byte) error {
	target := b.Path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: create directory for %s: %v", ErrIO, name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrIO, name, err)
	}
	tmpName := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrIO, name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: chmod %s: %v", ErrIO, name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", ErrIO, name, err)
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
