package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/stamps"
	"github.com/s-hosono/stamprally/internal/store"
)

// StampsCollection maps user ids to their collected stamps in acquisition order.
const StampsCollection = "stamps.json"

// StampServiceProvider defines the interface for stamp services.
type StampServiceProvider interface {
	Points(ctx context.Context, userID string) ([]models.PointStatus, error)
	Collected(ctx context.Context, userID string) ([]models.UserStamp, error)
	Progress(ctx context.Context, userID string) (models.Progress, error)
	Scan(ctx context.Context, userID, qrPayload string, pos *models.Location) (stamps.Outcome, error)
}

// StampService commits accepted scans to the stamps collection.
type StampService struct {
	store  *store.Store
	engine *stamps.Engine
	events EventServiceProvider
}

// NewStampService creates a new StampService. events may be nil.
func NewStampService(s *store.Store, engine *stamps.Engine, events EventServiceProvider) *StampService {
	return &StampService{store: s, engine: engine, events: events}
}

// Init creates the stamps collection if it does not exist.
func (s *StampService) Init(ctx context.Context) error {
	return s.store.Init(ctx, StampsCollection, map[string][]models.UserStamp{})
}

// Points returns the catalog annotated with the user's completion state.
func (s *StampService) Points(ctx context.Context, userID string) ([]models.PointStatus, error) {
	collected, err := s.Collected(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stamps.Annotate(s.engine.Points(), collected), nil
}

// Collected returns the user's stamps in acquisition order.
func (s *StampService) Collected(ctx context.Context, userID string) ([]models.UserStamp, error) {
	var all map[string][]models.UserStamp
	if err := s.store.Read(ctx, StampsCollection, &all); err != nil {
		return nil, err
	}
	collected := all[userID]
	if collected == nil {
		collected = []models.UserStamp{}
	}
	return collected, nil
}

// Progress summarizes the user's collection against the catalog.
func (s *StampService) Progress(ctx context.Context, userID string) (models.Progress, error) {
	collected, err := s.Collected(ctx, userID)
	if err != nil {
		return models.Progress{}, err
	}
	return stamps.Summarize(s.engine.Points(), collected), nil
}

// Scan decides and commits a scan in one critical section, so the
// already-collected check sees every stamp committed before it.
// Rejections are reported in the outcome, not as errors.
func (s *StampService) Scan(ctx context.Context, userID, qrPayload string, pos *models.Location) (stamps.Outcome, error) {
	var (
		all     map[string][]models.UserStamp
		outcome stamps.Outcome
	)
	err := s.store.ReadModifyWrite(ctx, StampsCollection, &all, func() error {
		outcome = s.engine.AttemptAcquire(userID, qrPayload, all[userID], pos)
		if !outcome.Accepted() {
			return errNoChange
		}
		if all == nil {
			all = make(map[string][]models.UserStamp)
		}
		prev := all[userID]
		if n := len(prev); n > 0 && outcome.Stamp.CollectedAt.Before(prev[n-1].CollectedAt) {
			// Wall clock stepped back; keep collectedAt non-decreasing.
			outcome.Stamp.CollectedAt = prev[n-1].CollectedAt
		}
		all[userID] = append(prev, *outcome.Stamp)
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return stamps.Outcome{}, fmt.Errorf("commit stamp: %w", err)
	}

	if outcome.Accepted() && s.events != nil {
		msg := fmt.Sprintf("Stamp '%s' collected.", outcome.Point.Name)
		if err := s.events.CreateEvent(ctx, "stamp.acquire", "info", msg, &userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to record stamp event")
		}
	}
	return outcome, nil
}

// errNoChange aborts a read-modify-write without writing.
var errNoChange = errors.New("no change")
