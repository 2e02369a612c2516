package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/auth"
	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/repository"
)

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthServiceProvider defines the interface for authentication services.
type AuthServiceProvider interface {
	Register(ctx context.Context, name, email, password string) (models.User, error)
	Login(ctx context.Context, email, password string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// AuthService provides registration and login on top of a credential repository.
type AuthService struct {
	repo      repository.CredentialRepository
	hasher    auth.PasswordHasher
	events    EventServiceProvider
	now       func() time.Time
	dummyHash string
}

// NewAuthService creates a new AuthService. events may be nil.
func NewAuthService(repo repository.CredentialRepository, hasher auth.PasswordHasher, events EventServiceProvider) *AuthService {
	s := &AuthService{
		repo:   repo,
		hasher: hasher,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
	// Unknown emails are verified against this hash so they cost the same as
	// a wrong password.
	if h, err := hasher.Hash(uuid.NewString()); err == nil {
		s.dummyHash = h
	}
	return s
}

// Register validates input, hashes the password and stores a new profile.
// Expected failures are returned as AuthErrors.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	var errs AuthErrors
	if name == "" {
		errs = append(errs, missingField("name", "Please enter your name"))
	}
	if email == "" {
		errs = append(errs, missingField("email", "Please enter your email address"))
	} else if !emailPattern.MatchString(email) {
		errs = append(errs, malformedField("email", "Please enter a valid email address"))
	}
	switch {
	case password == "":
		errs = append(errs, missingField("password", "Please enter a password"))
	case len(password) < minPasswordLength:
		errs = append(errs, malformedField("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLength)))
	case len(password) > maxPasswordLength:
		errs = append(errs, malformedField("password", fmt.Sprintf("Password must be at most %d bytes", maxPasswordLength)))
	}
	if len(errs) > 0 {
		return models.User{}, errs
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to hash password")
		return models.User{}, AuthErrors{errInternal}
	}

	user := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		RegisteredAt: s.now(),
	}

	if err := s.repo.Create(ctx, user, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.User{}, AuthErrors{errDuplicateEmail}
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to store new user")
		return models.User{}, AuthErrors{errInternal}
	}

	s.recordEvent(ctx, "user.register", fmt.Sprintf("User '%s' registered.", user.Name), user.ID)
	return user, nil
}

// Login verifies credentials. An unknown email and a wrong password produce
// the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.User, error) {
	email = strings.TrimSpace(email)

	var errs AuthErrors
	if email == "" {
		errs = append(errs, missingField("email", "Please enter your email address"))
	}
	if password == "" {
		errs = append(errs, missingField("password", "Please enter your password"))
	}
	if len(errs) > 0 {
		return models.User{}, errs
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return models.User{}, AuthErrors{errInvalidCredentials}
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to look up user")
		return models.User{}, AuthErrors{errInternal}
	}

	hash, err := s.repo.GetPasswordHash(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("user_id", user.ID).Msg("User has no stored password hash")
			s.hasher.Verify(password, s.dummyHash)
			return models.User{}, AuthErrors{errInvalidCredentials}
		}
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to load password hash")
		return models.User{}, AuthErrors{errInternal}
	}

	if !s.hasher.Verify(password, hash) {
		return models.User{}, AuthErrors{errInvalidCredentials}
	}
	return user, nil
}

// ListUsers returns every registered profile.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

func (s *AuthService) recordEvent(ctx context.Context, eventType, message, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.CreateEvent(ctx, eventType, "info", message, &userID); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to record event")
	}
}
