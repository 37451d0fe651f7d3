package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klokku/daybook/internal/event_bus"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/klokku/daybook/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Result struct {
	Event    calendar.CanonicalEvent
	NewStart time.Time
	NewEnd   time.Time
	FromKey  string
	ToKey    string
}

// EventStore persists moved events and finds events the view does not hold.
type EventStore interface {
	calendar.Store
	GetEvent(ctx context.Context, eventId string) (calendar.CanonicalEvent, error)
}

type Resolver struct {
	store EventStore
	bus   *event_bus.EventBus
}

// NewResolver creates a resolver persisting through store. bus may be nil.
func NewResolver(store EventStore, bus *event_bus.EventBus) *Resolver {
	return &Resolver{store: store, bus: bus}
}

// Target computes the new times of e when dropped at offsetMinutes of date in loc.
// The offset is clamped to the day and the stored duration is kept. All-day events
// keep their all-day span and only change date.
//
// An offset naming a wall-clock time that does not exist in loc (a spring-forward
// gap) resolves the way time.Date does, one gap length later: 02:30 on a day where
// clocks jump from 02:00 to 03:00 becomes 03:30. Such a drop reads back with a
// different minute of day than the one supplied.
func Target(e calendar.CanonicalEvent, date timeutil.Date, offsetMinutes int, loc *time.Location) (time.Time, time.Time) {
	if e.AllDay {
		start := date.UTCMidnight()
		return start, start.Add(e.Duration())
	}
	start := date.At(loc, timeutil.ClampMinutes(offsetMinutes))
	return start, start.Add(e.Duration())
}

// ResolveDrop moves eventID of view to targetDateKey at dropOffsetMinutes. The view's
// buckets are updated before the store confirms and restored when it fails.
func (r *Resolver) ResolveDrop(ctx context.Context, view *calendar.View, eventID string, targetDateKey string, dropOffsetMinutes int) (Result, error) {
	fromKey, original, fromInView := view.Buckets.Find(eventID)
	if fromInView && !original.SourceType.Mutable() {
		return Result{}, fmt.Errorf("%w: %s events are read-only", calendar.ErrImmutableSource, original.SourceType)
	}
	date, err := timeutil.ParseDate(targetDateKey)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", timeutil.ErrInvalidWindow, err)
	}
	loc := view.Location
	if loc == nil {
		if loc, err = timeutil.LoadZone(view.Zone); err != nil {
			return Result{}, err
		}
	}
	if !fromInView {
		// Dragged from a day outside the view; only stored events can move.
		if original, err = r.store.GetEvent(ctx, eventID); err != nil {
			return Result{}, err
		}
		fromKey = calendar.BucketKey(original, loc)
	}

	moved := original
	moved.Start, moved.End = Target(original, date, dropOffsetMinutes, loc)
	toKey := calendar.BucketKey(moved, loc)

	if fromInView {
		view.Buckets.Remove(fromKey, eventID)
	}
	inView := view.Window.Contains(date)
	if inView {
		view.Buckets.Insert(toKey, moved)
	}

	persisted, err := r.store.UpdateEvent(ctx, moved)
	if err != nil {
		if inView {
			view.Buckets.Remove(toKey, eventID)
		}
		if fromInView {
			view.Buckets.Insert(fromKey, original)
		}
		log.Errorf("failed to persist move of event %s: %v", eventID, err)
		if errors.Is(err, calendar.ErrEventNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", calendar.ErrPersistenceFailure, err)
	}
	if inView {
		view.Buckets.Remove(toKey, eventID)
		view.Buckets.Insert(toKey, persisted)
	}

	r.publish(ctx, original, persisted)
	log.Debugf("event %s moved from %s to %s", eventID, fromKey, toKey)
	return Result{Event: persisted, NewStart: persisted.Start, NewEnd: persisted.End, FromKey: fromKey, ToKey: toKey}, nil
}

func (r *Resolver) publish(ctx context.Context, original, moved calendar.CanonicalEvent) {
	if r.bus == nil {
		return
	}
	userId, _ := user.CurrentId(ctx)
	err := r.bus.PublishNew(ctx, event_bus.EventRescheduledType, event_bus.EventRescheduled{
		UserId:   userId,
		EventId:  moved.ID,
		OldStart: original.Start,
		OldEnd:   original.End,
		NewStart: moved.Start,
		NewEnd:   moved.End,
	})
	if err != nil {
		log.Warnf("rescheduled event %s: subscriber failed: %v", moved.ID, err)
	}
}
