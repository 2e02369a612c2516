package session

import (
	"context"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/store"
)

// SessionCollection is the record store collection holding the cached session.
const SessionCollection = "session.json"

// Snapshot is the persisted form of a session.
type Snapshot struct {
	User            *models.User       `json:"user,omitempty"`
	Token           string             `json:"token,omitempty"`
	CollectedStamps []models.UserStamp `json:"collectedStamps"`
}

// Cache persists sessions between process runs.
type Cache interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}

// StoreCache keeps the session in a record store collection.
type StoreCache struct {
	store *store.Store
}

// NewStoreCache creates a new StoreCache.
func NewStoreCache(s *store.Store) *StoreCache {
	return &StoreCache{store: s}
}

// Load returns the cached snapshot. A missing collection yields an empty snapshot.
func (c *StoreCache) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := c.store.Read(ctx, SessionCollection, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *StoreCache) Save(ctx context.Context, snap Snapshot) error {
	if snap.CollectedStamps == nil {
		snap.CollectedStamps = []models.UserStamp{}
	}
	return c.store.Write(ctx, SessionCollection, snap)
}

func (c *StoreCache) Clear(ctx context.Context) error {
	return c.Save(ctx, Snapshot{})
}
