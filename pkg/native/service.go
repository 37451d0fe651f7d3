package native

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/klokku/daybook/pkg/user"
)

// DefaultCalendarName labels native events created without a calendar name.
const DefaultCalendarName = "Daybook"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) CreateEvent(ctx context.Context, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("failed to get current user: %w", err)
	}
	event, err = normalize(event)
	if err != nil {
		return calendar.CanonicalEvent{}, err
	}

	stored, err := s.repo.StoreEvent(ctx, userId, event)
	if err != nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("failed to store event: %w", err)
	}
	return stored, nil
}

// CreateEventIfAbsent stores a routine-derived event once per recurrence key.
func (s *Service) CreateEventIfAbsent(ctx context.Context, event calendar.CanonicalEvent) (bool, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current user: %w", err)
	}
	event, err = normalize(event)
	if err != nil {
		return false, err
	}
	created, err := s.repo.StoreEventIfAbsent(ctx, userId, event)
	if err != nil {
		return false, fmt.Errorf("failed to store event: %w", err)
	}
	return created, nil
}

// CreateEventsIfAbsent stores all events in one transaction and returns how many were new.
func (s *Service) CreateEventsIfAbsent(ctx context.Context, events []calendar.CanonicalEvent) (int, error) {
	created := 0
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		txService := NewService(repo)
		for _, event := range events {
			ok, err := txService.CreateEventIfAbsent(ctx, event)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to perform transaction: %w", err)
	}
	return created, nil
}

func (s *Service) GetEvent(ctx context.Context, eventId string) (calendar.CanonicalEvent, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetEvent(ctx, userId, eventId)
}

func (s *Service) GetEvents(ctx context.Context, from time.Time, to time.Time) ([]calendar.CanonicalEvent, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetEvents(ctx, userId, from, to)
}

func (s *Service) UpdateEvent(ctx context.Context, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if event.SourceType != "" && !event.SourceType.Mutable() {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: %s", calendar.ErrImmutableSource, event.SourceType)
	}
	event, err = normalize(event)
	if err != nil {
		return calendar.CanonicalEvent{}, err
	}
	updated, err := s.repo.UpdateEvent(ctx, userId, event)
	if err != nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("failed to update event: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteEvent(ctx context.Context, eventId string) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.DeleteEvent(ctx, userId, eventId)
}

// normalize fills defaults and checks the fields a stored event needs. All-day events
// are snapped to UTC midnights spanning at least one day.
func normalize(event calendar.CanonicalEvent) (calendar.CanonicalEvent, error) {
	event.Title = strings.TrimSpace(event.Title)
	event.SourceType = calendar.SourceNative
	if event.SourceCalendarName == "" {
		event.SourceCalendarName = DefaultCalendarName
	}
	if event.Title == "" {
		return event, fmt.Errorf("%w: title is required", calendar.ErrMalformedEvent)
	}
	if event.Start.IsZero() || event.End.IsZero() {
		return event, fmt.Errorf("%w: start and end are required", calendar.ErrMalformedEvent)
	}
	if event.End.Before(event.Start) {
		return event, fmt.Errorf("%w: end before start", calendar.ErrMalformedEvent)
	}
	if event.AllDay {
		event.Start = timeutil.DateOf(event.Start.UTC()).UTCMidnight()
		event.End = timeutil.DateOf(event.End.UTC()).UTCMidnight()
		if !event.End.After(event.Start) {
			event.End = event.Start.AddDate(0, 0, 1)
		}
	}
	return event, nil
}
