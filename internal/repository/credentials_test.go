package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/store"
)

func newUser(name, email string) models.User {
	return models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		RegisteredAt: time.Now().UTC().Truncate(time.Second),
	}
}

func newRepo(t *testing.T) *Credentials {
	t.Helper()
	repo := NewCredentials(store.NewMemory())
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestCredentials_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	alice := newUser("Alice", "alice@example.com")
	bob := newUser("Bob", "bob@example.com")
	require.NoError(t, repo.Create(ctx, alice, "hash-a"))
	require.NoError(t, repo.Create(ctx, bob, "hash-b"))

	got, err := repo.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob, got)

	hash, err := repo.GetPasswordHash(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", hash)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestCredentials_EmailIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, newUser("A", "Alice@example.com"), "h"))

	_, err := repo.FindByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentials_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetPasswordHash(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentials_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, newUser("A", "dup@example.com"), "first"))

	err := repo.Create(ctx, newUser("B", "dup@example.com"), "second")
	require.ErrorIs(t, err, ErrDuplicateEmail)

	hash, err := repo.GetPasswordHash(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, "first", hash, "rejected registration must not touch the stored hash")
}

func TestCredentials_ConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	const n = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, newUser(fmt.Sprintf("u%d", i), "race@example.com"), fmt.Sprintf("h%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrDuplicateEmail):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, dupes)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

type failingBackend struct {
	*store.MemoryBackend
	failOn string
}

func (b failingBackend) Save(name string, data []byte) error {
	if name == b.failOn {
		return fmt.Errorf("%w: disk full", store.ErrIO)
	}
	return b.MemoryBackend.Save(name, data)
}

func TestCredentials_PasswordWriteFailureLeavesNoProfile(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryBackend()
	require.NoError(t, NewCredentials(store.New(mem, time.Second)).Init(ctx))

	repo := NewCredentials(store.New(failingBackend{MemoryBackend: mem, failOn: PasswordsCollection}, time.Second))
	err := repo.Create(ctx, newUser("A", "a@example.com"), "h")
	require.ErrorIs(t, err, store.ErrIO)

	_, err = repo.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
