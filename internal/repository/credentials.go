// Package repository provides domain-typed access to the persisted user and
// password collections.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/store"
)

const (
	// UsersCollection holds an array of models.User.
	UsersCollection = "users.json"
	// PasswordsCollection holds an object mapping email to password hash.
	PasswordsCollection = "passwords.json"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// CredentialRepository is the storage contract used by the auth service.
type CredentialRepository interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, user models.User, passwordHash string) error
	GetPasswordHash(ctx context.Context, email string) (string, error)
	List(ctx context.Context) ([]models.User, error)
}

// Credentials stores profiles and password hashes in two collections of a
// record store.
type Credentials struct {
	store *store.Store
}

// NewCredentials creates a Credentials repository.
func NewCredentials(s *store.Store) *Credentials {
	return &Credentials{store: s}
}

// Init creates empty collections if they do not exist yet.
func (c *Credentials) Init(ctx context.Context) error {
	if err := c.store.Init(ctx, UsersCollection, []models.User{}); err != nil {
		return fmt.Errorf("init users: %w", err)
	}
	if err := c.store.Init(ctx, PasswordsCollection, map[string]string{}); err != nil {
		return fmt.Errorf("init passwords: %w", err)
	}
	return nil
}

func (c *Credentials) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var users []models.User
	if err := c.store.Read(ctx, UsersCollection, &users); err != nil {
		return models.User{}, err
	}
	if i := indexByEmail(users, email); i >= 0 {
		return users[i], nil
	}
	return models.User{}, ErrNotFound
}

// Create appends user and stores its password hash.
//
// The duplicate check, the hash write and the profile write all happen while
// the users collection is locked. Locks are always taken users first, then
// passwords. A failed hash write leaves no profile behind.
func (c *Credentials) Create(ctx context.Context, user models.User, passwordHash string) error {
	var users []models.User
	return c.store.ReadModifyWrite(ctx, UsersCollection, &users, func() error {
		if indexByEmail(users, user.Email) >= 0 {
			return ErrDuplicateEmail
		}

		var passwords map[string]string
		err := c.store.ReadModifyWrite(ctx, PasswordsCollection, &passwords, func() error {
			if passwords == nil {
				passwords = make(map[string]string)
			}
			passwords[user.Email] = passwordHash
			return nil
		})
		if err != nil {
			return fmt.Errorf("store password hash: %w", err)
		}

		users = append(users, user)
		return nil
	})
}

func (c *Credentials) GetPasswordHash(ctx context.Context, email string) (string, error) {
	var passwords map[string]string
	if err := c.store.Read(ctx, PasswordsCollection, &passwords); err != nil {
		return "", err
	}
	hash, ok := passwords[email]
	if !ok || hash == "" {
		return "", ErrNotFound
	}
	return hash, nil
}

func (c *Credentials) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := c.store.Read(ctx, UsersCollection, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func indexByEmail(users []models.User, email string) int {
	for i, u := range users {
		if u.Email == email {
			return i
		}
	}
	return -1
}
