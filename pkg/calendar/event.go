package calendar

import (
	"fmt"
	"strings"
	"time"
)

type SourceType string

const (
	SourceNative  SourceType = "native"
	SourceRoutine SourceType = "routine"
	SourceGoogle  SourceType = "google"
	SourceOutlook SourceType = "outlook"
	SourceApple   SourceType = "apple"
)

var sourcePriority = map[SourceType]int{
	SourceNative:  0,
	SourceRoutine: 1,
	SourceGoogle:  2,
	SourceOutlook: 3,
	SourceApple:   4,
}

// Priority orders sources for tie-breaking; lower sorts first. Unknown sources sort last.
func (s SourceType) Priority() int {
	if p, ok := sourcePriority[s]; ok {
		return p
	}
	return len(sourcePriority)
}

func (s SourceType) Valid() bool {
	_, ok := sourcePriority[s]
	return ok
}

// Mutable reports whether events of this source may be edited or moved.
func (s SourceType) Mutable() bool {
	return s == SourceNative
}

func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown source type %q", s)
	}
	return st, nil
}

// CanonicalEvent is the provider-agnostic event every adapter normalizes into.
type CanonicalEvent struct {
	ID                 string
	Title              string
	Start              time.Time
	End                time.Time
	AllDay             bool
	SourceType         SourceType
	SourceCalendarName string
	Location           string
	Description        string
	// RecurrenceKey identifies a routine instance (rule + date). Empty for other events.
	RecurrenceKey string
}

// Duration is the stored duration used for rescheduling.
func (e CanonicalEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Validate checks the invariants the aggregation relies on.
func (e CanonicalEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: event %s has no title", ErrMalformedEvent, e.ID)
	}
	if e.Start.IsZero() {
		return fmt.Errorf("%w: event %s has no start", ErrMalformedEvent, e.ID)
	}
	if e.End.IsZero() {
		return fmt.Errorf("%w: event %s has no end", ErrMalformedEvent, e.ID)
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("%w: event %s ends before it starts", ErrMalformedEvent, e.ID)
	}
	if !e.SourceType.Valid() {
		return fmt.Errorf("%w: event %s has unknown source %q", ErrMalformedEvent, e.ID, e.SourceType)
	}
	return nil
}
