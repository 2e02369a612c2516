package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/store"
)

// EventsCollection holds the audit log, oldest first.
const EventsCollection = "events.json"

// DefaultEventRetention is the number of events kept when none is configured.
const DefaultEventRetention = 500

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService provides business logic for event management.
type EventService struct {
	store  *store.Store
	retain int
}

// NewEventService creates a new EventService keeping at most retain events.
func NewEventService(s *store.Store, retain int) *EventService {
	if retain <= 0 {
		retain = DefaultEventRetention
	}
	return &EventService{store: s, retain: retain}
}

// CreateEvent appends a new event, dropping the oldest ones past the retention limit.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	var events []models.Event
	return s.store.ReadModifyWrite(ctx, EventsCollection, &events, func() error {
		events = append(events, event)
		if over := len(events) - s.retain; over > 0 {
			events = append([]models.Event(nil), events[over:]...)
		}
		return nil
	})
}

// GetRecentEvents retrieves the most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	var events []models.Event
	if err := s.store.Read(ctx, EventsCollection, &events); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.Event{}, nil
	}

	recent := make([]models.Event, 0, min(limit, len(events)))
	for i := len(events) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, events[i])
	}
	return recent, nil
}
