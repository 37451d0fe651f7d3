package calendar

import (
	"sort"
	"time"

	"github.com/klokku/daybook/pkg/timeutil"
)

// DayBuckets maps a display-zone date key (YYYY-MM-DD) to the events starting on that
// date, ordered with Less.
type DayBuckets map[string][]CanonicalEvent

// Less orders events by start, then source priority, then id.
func Less(a, b CanonicalEvent) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if a.SourceType.Priority() != b.SourceType.Priority() {
		return a.SourceType.Priority() < b.SourceType.Priority()
	}
	return a.ID < b.ID
}

func SortEvents(events []CanonicalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}

// Keys returns the bucket keys in chronological order.
func (b DayBuckets) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b DayBuckets) Count() int {
	count := 0
	for _, events := range b {
		count += len(events)
	}
	return count
}

// Find locates an event by id.
func (b DayBuckets) Find(id string) (string, CanonicalEvent, bool) {
	for key, events := range b {
		for _, e := range events {
			if e.ID == id {
				return key, e, true
			}
		}
	}
	return "", CanonicalEvent{}, false
}

// Insert adds event to the bucket under key keeping the bucket ordered.
func (b DayBuckets) Insert(key string, event CanonicalEvent) {
	events := b[key]
	i := sort.Search(len(events), func(i int) bool {
		return Less(event, events[i])
	})
	events = append(events, CanonicalEvent{})
	copy(events[i+1:], events[i:])
	events[i] = event
	b[key] = events
}

// Remove deletes the event with id from the bucket under key.
func (b DayBuckets) Remove(key string, id string) (CanonicalEvent, bool) {
	events := b[key]
	for i, e := range events {
		if e.ID != id {
			continue
		}
		remaining := make([]CanonicalEvent, 0, len(events)-1)
		remaining = append(remaining, events[:i]...)
		remaining = append(remaining, events[i+1:]...)
		if len(remaining) == 0 {
			delete(b, key)
		} else {
			b[key] = remaining
		}
		return e, true
	}
	return CanonicalEvent{}, false
}

// Clone copies the map and every bucket slice.
func (b DayBuckets) Clone() DayBuckets {
	clone := make(DayBuckets, len(b))
	for k, events := range b {
		clone[k] = append([]CanonicalEvent(nil), events...)
	}
	return clone
}

// BucketKey returns the date key an event belongs to in loc. All-day events keep
// their calendar date regardless of the display zone.
func BucketKey(event CanonicalEvent, loc *time.Location) string {
	if event.AllDay {
		return timeutil.DateOf(event.Start.UTC()).Key()
	}
	return timeutil.LocalDateKey(timeutil.PartsIn(event.Start, loc))
}

// View is the request-scoped state of one rendered calendar view. It replaces any
// process-wide "current view" state; every operation receives it explicitly.
type View struct {
	Window   timeutil.DateWindow
	Zone     string
	Location *time.Location
	Buckets  DayBuckets
}
