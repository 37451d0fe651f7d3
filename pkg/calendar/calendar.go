package calendar

import (
	"context"
	"time"
)

// TimeRange is the half-open instant range [From, To) an adapter is asked for.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Adapter fetches events from one source and returns them already normalized.
// Events must carry absolute instants and provenance (SourceType, SourceCalendarName).
type Adapter interface {
	// Name identifies the adapter in diagnostics and logs, e.g. "google:work".
	Name() string
	SourceType() SourceType
	Fetch(ctx context.Context, r TimeRange) ([]CanonicalEvent, error)
}

// Store is implemented by adapters owning their events (native only).
type Store interface {
	CreateEvent(ctx context.Context, event CanonicalEvent) (CanonicalEvent, error)
	UpdateEvent(ctx context.Context, event CanonicalEvent) (CanonicalEvent, error)
	DeleteEvent(ctx context.Context, eventId string) error
}

// AdapterFunc turns a function into an Adapter, mostly useful in tests and for
// sources without a dedicated client type.
type AdapterFunc struct {
	AdapterName string
	Source      SourceType
	FetchFunc   func(ctx context.Context, r TimeRange) ([]CanonicalEvent, error)
}

func (a AdapterFunc) Name() string {
	return a.AdapterName
}

func (a AdapterFunc) SourceType() SourceType {
	return a.Source
}

func (a AdapterFunc) Fetch(ctx context.Context, r TimeRange) ([]CanonicalEvent, error) {
	return a.FetchFunc(ctx, r)
}
