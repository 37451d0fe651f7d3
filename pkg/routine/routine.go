package routine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/daybook/pkg/timeutil"
)

var ErrInvalidRule = errors.New("invalid routine rule")
var ErrRuleNotFound = errors.New("routine rule not found")

type Kind string

const (
	KindWake     Kind = "wake"
	KindWork     Kind = "work"
	KindMeal     Kind = "meal"
	KindExercise Kind = "exercise"
	KindBedtime  Kind = "bedtime"
	KindCustom   Kind = "custom"
)

func (k Kind) Valid() bool {
	switch k {
	case KindWake, KindWork, KindMeal, KindExercise, KindBedtime, KindCustom:
		return true
	}
	return false
}

// Rule is a declarative daily pattern. TimeOfDay is a wall clock interpreted in the
// user's home zone when the rule is expanded.
type Rule struct {
	ID              string
	Title           string
	Kind            Kind
	TimeOfDay       timeutil.Clock
	DaysOfWeek      []time.Weekday
	DurationMinutes int
	// ValidFrom and ValidUntil bound the rule inclusively; zero dates are open-ended.
	ValidFrom  timeutil.Date
	ValidUntil timeutil.Date
	Enabled    bool
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: rule %s has no title", ErrInvalidRule, r.ID)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: rule %s has unknown kind %q", ErrInvalidRule, r.ID, r.Kind)
	}
	if !r.TimeOfDay.Valid() {
		return fmt.Errorf("%w: rule %s has invalid time of day %s", ErrInvalidRule, r.ID, r.TimeOfDay)
	}
	if r.DurationMinutes < 0 || r.DurationMinutes > timeutil.MinutesPerDay {
		return fmt.Errorf("%w: rule %s has invalid duration %d", ErrInvalidRule, r.ID, r.DurationMinutes)
	}
	for _, d := range r.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: rule %s has invalid weekday %d", ErrInvalidRule, r.ID, d)
		}
	}
	if !r.ValidFrom.IsZero() && !r.ValidUntil.IsZero() && r.ValidUntil.Before(r.ValidFrom) {
		return fmt.Errorf("%w: rule %s valid until %s before %s", ErrInvalidRule, r.ID, r.ValidUntil, r.ValidFrom)
	}
	return nil
}

// OccursOn reports whether the rule produces an instance on d.
func (r Rule) OccursOn(d timeutil.Date) bool {
	if !r.ValidFrom.IsZero() && d.Before(r.ValidFrom) {
		return false
	}
	if !r.ValidUntil.IsZero() && d.After(r.ValidUntil) {
		return false
	}
	weekday := d.Weekday()
	for _, day := range r.DaysOfWeek {
		if day == weekday {
			return true
		}
	}
	return false
}

// ParseWeekday accepts English weekday names and three letter abbreviations.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, s)
}
