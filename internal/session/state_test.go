package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/store"
)

var (
	taro = models.User{ID: "u1", Name: "Taro", Email: "taro@example.com"}
	t0   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func stamp(id, point string, at time.Time) models.UserStamp {
	return models.UserStamp{ID: id, UserID: "u1", StampPointID: point, CollectedAt: at}
}

type failingCache struct{ Cache }

func (failingCache) Save(context.Context, Snapshot) error { return errors.New("disk full") }

func TestState_Transitions(t *testing.T) {
	ctx := context.Background()
	cache := NewStoreCache(store.NewMemory())
	s := NewState(cache)

	assert.False(t, s.Authenticated())
	assert.ErrorIs(t, s.AddStamp(ctx, stamp("s1", "1", t0)), ErrNotAuthenticated)

	require.NoError(t, s.SignIn(ctx, taro, "tok", nil))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "tok", s.Token())

	require.NoError(t, s.AddStamp(ctx, stamp("s1", "1", t0)))
	require.NoError(t, s.AddStamp(ctx, stamp("s2", "3", t0.Add(time.Minute))))
	assert.ErrorIs(t, s.AddStamp(ctx, stamp("s3", "1", t0.Add(2*time.Minute))), ErrAlreadyCollected)
	assert.ErrorIs(t, s.AddStamp(ctx, stamp("s4", "2", t0)), ErrOutOfOrder)

	foreign := stamp("s5", "2", t0.Add(time.Hour))
	foreign.UserID = "u2"
	assert.ErrorIs(t, s.AddStamp(ctx, foreign), ErrForeignStamp)

	collected := s.Collected()
	require.Len(t, collected, 2)
	assert.Equal(t, "1", collected[0].StampPointID)
	assert.Equal(t, "3", collected[1].StampPointID)

	collected[0].StampPointID = "mutated"
	assert.Equal(t, "1", s.Collected()[0].StampPointID)

	require.NoError(t, s.SignOut(ctx))
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Collected())
	assert.Empty(t, s.Token())
}

func TestState_SignInRejectsIncompleteProfile(t *testing.T) {
	s := NewState(NewStoreCache(store.NewMemory()))
	err := s.SignIn(context.Background(), models.User{Name: "nobody"}, "", nil)
	assert.ErrorIs(t, err, ErrInvalidProfile)
	assert.False(t, s.Authenticated())
}

func TestState_SaveFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewState(failingCache{NewStoreCache(store.NewMemory())})
	assert.Error(t, s.SignIn(ctx, taro, "tok", nil))
	assert.False(t, s.Authenticated())
}

func TestRehydrate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	newCache := func() *StoreCache {
		backend, err := store.NewFileBackend(dir)
		require.NoError(t, err)
		return NewStoreCache(store.New(backend, time.Second))
	}

	assert.False(t, Rehydrate(ctx, newCache()).Authenticated())

	first := NewState(newCache())
	require.NoError(t, first.SignIn(ctx, taro, "tok", []models.UserStamp{stamp("s1", "1", t0)}))

	second := Rehydrate(ctx, newCache())
	require.True(t, second.Authenticated())
	user, _ := second.User()
	assert.Equal(t, taro.ID, user.ID)
	assert.Equal(t, "tok", second.Token())
	require.Len(t, second.Collected(), 1)

	require.NoError(t, second.SignOut(ctx))
	assert.False(t, Rehydrate(ctx, newCache()).Authenticated())
}

func TestRehydrate_CorruptCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SessionCollection), []byte("{broken"), 0o644))
	backend, err := store.NewFileBackend(dir)
	require.NoError(t, err)

	s := Rehydrate(context.Background(), NewStoreCache(store.New(backend, time.Second)))
	assert.False(t, s.Authenticated())
}
