// Package session holds the client-side view of the signed-in user and the
// stamps they have collected.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/stamps"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrInvalidProfile   = errors.New("profile has no id or email")
	ErrAlreadyCollected = errors.New("stamp already collected")
	ErrForeignStamp     = errors.New("stamp belongs to another user")
	ErrOutOfOrder       = errors.New("stamp collected before the previous one")
)

// State is either Anonymous (no user) or Authenticated. Every transition is
// written to the cache before it becomes visible.
type State struct {
	mu        sync.RWMutex
	cache     Cache
	user      *models.User
	token     string
	collected []models.UserStamp
}

// NewState returns an Anonymous state backed by cache.
func NewState(cache Cache) *State {
	return &State{cache: cache}
}

// Rehydrate restores the session saved in cache. An unreadable or invalid
// cache yields an Anonymous state.
func Rehydrate(ctx context.Context, cache Cache) *State {
	s := NewState(cache)
	snap, err := cache.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable session cache")
		return s
	}
	if !validProfile(snap.User) {
		return s
	}
	user := *snap.User
	s.user = &user
	s.token = snap.Token
	s.collected = append([]models.UserStamp(nil), snap.CollectedStamps...)
	return s
}

// SignIn moves to Authenticated with the given profile and collected stamps,
// replacing any previous session.
func (s *State) SignIn(ctx context.Context, user models.User, token string, collected []models.UserStamp) error {
	if !validProfile(&user) {
		return ErrInvalidProfile
	}
	collected = append([]models.UserStamp(nil), collected...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.Save(ctx, Snapshot{User: &user, Token: token, CollectedStamps: collected}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.user, s.token, s.collected = &user, token, collected
	return nil
}

// SignOut moves to Anonymous and clears the cache.
func (s *State) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.user, s.token, s.collected = nil, "", nil
	return nil
}

// AddStamp appends an accepted stamp. The collected set only grows and keeps
// collection order.
func (s *State) AddStamp(ctx context.Context, stamp models.UserStamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return ErrNotAuthenticated
	}
	if stamp.UserID != s.user.ID {
		return ErrForeignStamp
	}
	if stamps.IsCollected(s.collected, stamp.StampPointID) {
		return ErrAlreadyCollected
	}
	if n := len(s.collected); n > 0 && stamp.CollectedAt.Before(s.collected[n-1].CollectedAt) {
		return ErrOutOfOrder
	}

	next := append(append([]models.UserStamp(nil), s.collected...), stamp)
	if err := s.cache.Save(ctx, Snapshot{User: s.user, Token: s.token, CollectedStamps: next}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.collected = next
	return nil
}

// Authenticated reports whether a user is signed in.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User returns the signed-in profile.
func (s *State) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Token returns the bearer token of the signed-in user, if any.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Collected returns a copy of the collected stamps in collection order.
func (s *State) Collected() []models.UserStamp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.UserStamp{}, s.collected...)
}

func validProfile(u *models.User) bool {
	return u != nil && u.ID != "" && u.Email != ""
}
