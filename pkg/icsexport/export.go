// Package icsexport renders an aggregated view as an iCalendar feed.
package icsexport

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/klokku/daybook/pkg/calendar"
)

const productId = "-//klokku//daybook//EN"

// Build creates a calendar holding every event of the view, in bucket order.
func Build(view calendar.View, name string, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productId)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	if view.Zone != "" {
		cal.SetXWRTimezone(view.Zone)
	}

	for _, key := range view.Buckets.Keys() {
		for _, e := range view.Buckets[key] {
			addEvent(cal, e, stamp)
		}
	}
	return cal
}

func addEvent(cal *ical.Calendar, e calendar.CanonicalEvent, stamp time.Time) {
	ve := cal.AddEvent(e.ID)
	ve.SetDtStampTime(stamp.UTC())
	if e.AllDay {
		ve.SetAllDayStartAt(e.Start.UTC())
		ve.SetAllDayEndAt(e.End.UTC())
	} else {
		ve.SetStartAt(e.Start.UTC())
		ve.SetEndAt(e.End.UTC())
	}
	ve.SetSummary(e.Title)
	if e.Location != "" {
		ve.SetLocation(e.Location)
	}
	if e.Description != "" {
		ve.SetDescription(e.Description)
	}
	ve.SetProperty(ical.ComponentPropertyCategories, string(e.SourceType))
	if e.SourceCalendarName != "" {
		ve.SetProperty(ical.ComponentProperty("X-DAYBOOK-CALENDAR"), e.SourceCalendarName)
	}
}

// Write serializes the view to w.
func Write(w io.Writer, view calendar.View, name string, stamp time.Time) error {
	_, err := io.WriteString(w, Build(view, name, stamp).Serialize())
	return err
}
