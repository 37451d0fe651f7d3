package icsexport

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	// given
	w, err := timeutil.ParseWindow("2024-06-05", "2024-06-06")
	require.NoError(t, err)
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	view := calendar.View{
		Window:   w,
		Zone:     "Europe/Warsaw",
		Location: time.UTC,
		Buckets: calendar.DayBuckets{
			"2024-06-05": {
				{ID: "n1", Title: "Review", Start: start, End: start.Add(time.Hour), SourceType: calendar.SourceNative, Location: "Office"},
			},
			"2024-06-06": {
				{ID: "apple:h", Title: "Holiday", AllDay: true, SourceType: calendar.SourceApple,
					Start: time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)},
			},
		},
	}
	var out strings.Builder

	// when
	err = Write(&out, view, "Daybook", start)

	// then
	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "X-WR-CALNAME:Daybook")
	assert.Contains(t, text, "DTSTART;VALUE=DATE:20240606")

	parsed, err := ical.ParseCalendar(strings.NewReader(text))
	require.NoError(t, err)
	events := parsed.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "n1", events[0].Id())
	parsedStart, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, parsedStart.Equal(start))
	assert.Equal(t, "Office", events[0].GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Equal(t, "native", events[0].GetProperty(ical.ComponentPropertyCategories).Value)
}
