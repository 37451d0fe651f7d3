package routine

import (
	"time"

	"github.com/google/uuid"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
)

// CalendarName labels routine instances.
const CalendarName = "Routine"

// InstanceIDPrefix prefixes generated instance ids so they never collide with stored ids.
const InstanceIDPrefix = "routine:"

var recurrenceNamespace = uuid.MustParse("6f1c3b0e-5d0a-4a43-9a3c-0d6a1f6f2e11")

// RecurrenceKey is the stable key of the instance of ruleID on date.
func RecurrenceKey(ruleID string, date timeutil.Date) string {
	return uuid.NewSHA1(recurrenceNamespace, []byte(ruleID+"|"+date.Key())).String()
}

// Expand materializes rule over window in zoneName.
func Expand(rule Rule, window timeutil.DateWindow, zoneName string) ([]calendar.CanonicalEvent, error) {
	loc, err := timeutil.LoadZone(zoneName)
	if err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return ExpandIn(rule, window, loc), nil
}

// ExpandIn produces at most one instance per day of window. Disabled rules produce none.
// An instance crossing midnight ends at 23:59:59 of its own local date.
func ExpandIn(rule Rule, window timeutil.DateWindow, loc *time.Location) []calendar.CanonicalEvent {
	if !rule.Enabled {
		return nil
	}
	var instances []calendar.CanonicalEvent
	for _, day := range window.Days() {
		if !rule.OccursOn(day) {
			continue
		}
		start := day.At(loc, rule.TimeOfDay.Minutes())
		end := start.Add(time.Duration(rule.DurationMinutes) * time.Minute)
		if endOfDay := day.EndOfDay(loc); end.After(endOfDay) {
			end = endOfDay
		}
		key := RecurrenceKey(rule.ID, day)
		instances = append(instances, calendar.CanonicalEvent{
			ID:                 InstanceIDPrefix + key,
			Title:              rule.Title,
			Start:              start,
			End:                end,
			SourceType:         calendar.SourceRoutine,
			SourceCalendarName: CalendarName,
			RecurrenceKey:      key,
		})
	}
	return instances
}

// ExpandAll expands every rule, keeping the order of rules then dates.
func ExpandAll(rules []Rule, window timeutil.DateWindow, loc *time.Location) []calendar.CanonicalEvent {
	var instances []calendar.CanonicalEvent
	for _, rule := range rules {
		instances = append(instances, ExpandIn(rule, window, loc)...)
	}
	return instances
}
