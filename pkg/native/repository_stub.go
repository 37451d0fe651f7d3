package native

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/daybook/pkg/calendar"
)

type RepositoryStub struct {
	mu      sync.RWMutex
	items   map[string]calendar.CanonicalEvent // uid -> event
	userIds map[string]int                     // uid -> userId
	// FailUpdates makes UpdateEvent return the error, for persistence failure tests.
	FailUpdates error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items:   make(map[string]calendar.CanonicalEvent),
		userIds: make(map[string]int),
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.mu.Lock()
	originalItems := make(map[string]calendar.CanonicalEvent, len(r.items))
	for k, v := range r.items {
		originalItems[k] = v
	}
	originalUserIds := make(map[string]int, len(r.userIds))
	for k, v := range r.userIds {
		originalUserIds[k] = v
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.items = originalItems
		r.userIds = originalUserIds
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *RepositoryStub) StoreEvent(ctx context.Context, userId int, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(userId, event), nil
}

func (r *RepositoryStub) store(userId int, event calendar.CanonicalEvent) calendar.CanonicalEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.SourceType = calendar.SourceNative
	r.items[event.ID] = event
	r.userIds[event.ID] = userId
	return event
}

func (r *RepositoryStub) StoreEventIfAbsent(ctx context.Context, userId int, event calendar.CanonicalEvent) (bool, error) {
	if event.RecurrenceKey == "" {
		return false, fmt.Errorf("%w: event without recurrence key", calendar.ErrMalformedEvent)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for uid, existing := range r.items {
		if r.userIds[uid] == userId && existing.RecurrenceKey == event.RecurrenceKey {
			return false, nil
		}
	}
	event.ID = ""
	r.store(userId, event)
	return true, nil
}

func (r *RepositoryStub) GetEvent(ctx context.Context, userId int, eventId string) (calendar.CanonicalEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.items[eventId]
	if !exists || r.userIds[eventId] != userId {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventId)
	}
	return event, nil
}

func (r *RepositoryStub) GetEvents(ctx context.Context, userId int, from, to time.Time) ([]calendar.CanonicalEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]calendar.CanonicalEvent, 0)
	for uid, event := range r.items {
		if r.userIds[uid] == userId && event.Start.Before(to) && !event.End.Before(from) {
			result = append(result, event)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.Before(result[j].Start)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *RepositoryStub) UpdateEvent(ctx context.Context, userId int, event calendar.CanonicalEvent) (calendar.CanonicalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailUpdates != nil {
		return calendar.CanonicalEvent{}, r.FailUpdates
	}
	existing, exists := r.items[event.ID]
	if !exists || r.userIds[event.ID] != userId {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, event.ID)
	}
	event.SourceType = calendar.SourceNative
	event.RecurrenceKey = existing.RecurrenceKey
	r.items[event.ID] = event
	return event, nil
}

func (r *RepositoryStub) DeleteEvent(ctx context.Context, userId int, eventId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.items[eventId]
	if !exists || r.userIds[eventId] != userId {
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventId)
	}
	delete(r.items, eventId)
	delete(r.userIds, eventId)
	return nil
}

// GetAllEvents returns every stored event (useful for test assertions)
func (r *RepositoryStub) GetAllEvents() []calendar.CanonicalEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]calendar.CanonicalEvent, 0, len(r.items))
	for _, event := range r.items {
		result = append(result, event)
	}
	return result
}

// Reset clears the stub (useful between tests)
func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[string]calendar.CanonicalEvent)
	r.userIds = make(map[string]int)
	r.FailUpdates = nil
}
