package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/teambition/rrule-go"
)

const (
	untitled       = "(No title)"
	maxOccurrences = 1000
)

type component struct {
	event      ical.Event
	uid        string
	start      time.Time
	end        time.Time
	allDay     bool
	recurrence time.Time
}

const icalUTCLayout = "20060102T150405Z"

// decodeCalendar turns one iCalendar object into canonical events overlapping r.
// Recurring masters are expanded and RECURRENCE-ID overrides replace their instance.
func decodeCalendar(cal *ical.Calendar, calendarName string, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
	var masters []component
	overrides := map[string]map[int64]component{}
	for _, e := range cal.Events() {
		c, err := readComponent(e)
		if err != nil {
			return nil, err
		}
		if !c.recurrence.IsZero() {
			if overrides[c.uid] == nil {
				overrides[c.uid] = map[int64]component{}
			}
			overrides[c.uid][c.recurrence.Unix()] = c
			continue
		}
		masters = append(masters, c)
	}

	var events []calendar.CanonicalEvent
	for _, m := range masters {
		set, err := m.event.RecurrenceSet(m.start.Location())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid recurrence of %s: %v", calendar.ErrMalformedEvent, m.uid, err)
		}
		if set == nil {
			if cancelled(m.event) || !overlaps(m.start, m.end, r) {
				continue
			}
			events = append(events, toCanonical(m, m.uid, calendarName))
			continue
		}
		for _, occurrence := range occurrences(set, m, r) {
			instance := m
			if o, ok := overrides[m.uid][occurrence.Unix()]; ok {
				instance = o
				delete(overrides[m.uid], occurrence.Unix())
			} else {
				instance.start = occurrence
				instance.end = occurrence.Add(m.end.Sub(m.start))
			}
			if cancelled(instance.event) || !overlaps(instance.start, instance.end, r) {
				continue
			}
			events = append(events, toCanonical(instance, instanceID(m.uid, occurrence), calendarName))
		}
	}
	// Overrides moved into the range from an occurrence outside it.
	for uid, byRecurrence := range overrides {
		for _, o := range byRecurrence {
			if cancelled(o.event) || !overlaps(o.start, o.end, r) {
				continue
			}
			events = append(events, toCanonical(o, instanceID(uid, o.recurrence), calendarName))
		}
	}
	return events, nil
}

func occurrences(set *rrule.Set, m component, r calendar.TimeRange) []time.Time {
	// Occurrences starting before the range may still overlap it.
	after := r.From.Add(-m.end.Sub(m.start))
	times := set.Between(after, r.To, true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}
	return times
}

func readComponent(e ical.Event) (component, error) {
	uidProp := e.Props.Get(ical.PropUID)
	if uidProp == nil || uidProp.Value == "" {
		return component{}, fmt.Errorf("%w: VEVENT without UID", calendar.ErrMalformedEvent)
	}
	c := component{event: e, uid: uidProp.Value}

	startProp := e.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return component{}, fmt.Errorf("%w: %s has no DTSTART", calendar.ErrMalformedEvent, c.uid)
	}
	c.allDay = startProp.ValueType() == ical.ValueDate
	start, err := propTime(startProp, c.allDay)
	if err != nil {
		return component{}, fmt.Errorf("%w: %s DTSTART: %v", calendar.ErrMalformedEvent, c.uid, err)
	}
	c.start = start

	switch {
	case e.Props.Get(ical.PropDateTimeEnd) != nil:
		end, err := propTime(e.Props.Get(ical.PropDateTimeEnd), c.allDay)
		if err != nil {
			return component{}, fmt.Errorf("%w: %s DTEND: %v", calendar.ErrMalformedEvent, c.uid, err)
		}
		c.end = end
	case e.Props.Get(ical.PropDuration) != nil:
		d, err := e.Props.Get(ical.PropDuration).Duration()
		if err != nil {
			return component{}, fmt.Errorf("%w: %s DURATION: %v", calendar.ErrMalformedEvent, c.uid, err)
		}
		c.end = c.start.Add(d)
	case c.allDay:
		c.end = c.start.AddDate(0, 0, 1)
	default:
		c.end = c.start
	}

	if ridProp := e.Props.Get(ical.PropRecurrenceID); ridProp != nil {
		rid, err := propTime(ridProp, ridProp.ValueType() == ical.ValueDate)
		if err != nil {
			return component{}, fmt.Errorf("%w: %s RECURRENCE-ID: %v", calendar.ErrMalformedEvent, c.uid, err)
		}
		c.recurrence = rid
	}
	return c, nil
}

// propTime reads a date or date-time property. Dates become UTC midnights, floating
// date-times are read as UTC.
func propTime(prop *ical.Prop, allDay bool) (time.Time, error) {
	if allDay {
		t, err := prop.DateTime(time.UTC)
		if err != nil {
			return time.Time{}, err
		}
		return timeutil.DateOf(t).UTCMidnight(), nil
	}
	return prop.DateTime(time.UTC)
}

func cancelled(e ical.Event) bool {
	status := e.Props.Get(ical.PropStatus)
	return status != nil && strings.EqualFold(status.Value, "CANCELLED")
}

func overlaps(start, end time.Time, r calendar.TimeRange) bool {
	if end.Equal(start) {
		return !start.Before(r.From) && start.Before(r.To)
	}
	return start.Before(r.To) && end.After(r.From)
}

func instanceID(uid string, occurrence time.Time) string {
	return uid + "@" + occurrence.UTC().Format(icalUTCLayout)
}

func toCanonical(c component, id string, calendarName string) calendar.CanonicalEvent {
	title := untitled
	if summary := c.event.Props.Get(ical.PropSummary); summary != nil && strings.TrimSpace(summary.Value) != "" {
		title = strings.TrimSpace(summary.Value)
	}
	event := calendar.CanonicalEvent{
		ID:                 "apple:" + id,
		Title:              title,
		Start:              c.start,
		End:                c.end,
		AllDay:             c.allDay,
		SourceType:         calendar.SourceApple,
		SourceCalendarName: calendarName,
	}
	if location := c.event.Props.Get(ical.PropLocation); location != nil {
		event.Location = location.Value
	}
	if description := c.event.Props.Get(ical.PropDescription); description != nil {
		event.Description = description.Value
	}
	return event
}
