package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(id string, source SourceType, start time.Time) CanonicalEvent {
	return CanonicalEvent{
		ID:         id,
		Title:      "Event " + id,
		Start:      start,
		End:        start.Add(time.Hour),
		SourceType: source,
	}
}

func TestLess_TiesBrokenBySourcePriority(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	events := []CanonicalEvent{
		event("a", SourceApple, start),
		event("o", SourceOutlook, start),
		event("g", SourceGoogle, start),
		event("r", SourceRoutine, start),
		event("n", SourceNative, start),
		event("early", SourceApple, start.Add(-time.Minute)),
	}

	SortEvents(events)

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"early", "n", "r", "g", "o", "a"}, ids)
}

func TestDayBuckets_InsertRemove(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	b := DayBuckets{}

	b.Insert("2024-06-05", event("late", SourceNative, start.Add(2*time.Hour)))
	b.Insert("2024-06-05", event("early", SourceNative, start))
	b.Insert("2024-06-05", event("middle", SourceGoogle, start.Add(time.Hour)))

	require.Len(t, b["2024-06-05"], 3)
	assert.Equal(t, "early", b["2024-06-05"][0].ID)
	assert.Equal(t, "middle", b["2024-06-05"][1].ID)
	assert.Equal(t, "late", b["2024-06-05"][2].ID)

	key, found, ok := b.Find("middle")
	require.True(t, ok)
	assert.Equal(t, "2024-06-05", key)
	assert.Equal(t, SourceGoogle, found.SourceType)

	removed, ok := b.Remove("2024-06-05", "middle")
	require.True(t, ok)
	assert.Equal(t, "middle", removed.ID)
	assert.Len(t, b["2024-06-05"], 2)

	b.Remove("2024-06-05", "early")
	b.Remove("2024-06-05", "late")
	_, exists := b["2024-06-05"]
	assert.False(t, exists, "empty buckets are dropped")
}

func TestDayBuckets_CloneIsIndependent(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	b := DayBuckets{"2024-06-05": {event("a", SourceNative, start)}}

	clone := b.Clone()
	clone.Insert("2024-06-05", event("b", SourceNative, start.Add(time.Hour)))

	assert.Len(t, b["2024-06-05"], 1)
	assert.Len(t, clone["2024-06-05"], 2)
}

func TestBucketKey(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	timed := event("t", SourceGoogle, time.Date(2024, 6, 6, 3, 0, 0, 0, time.UTC))
	allDay := event("d", SourceGoogle, time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC))
	allDay.AllDay = true

	assert.Equal(t, "2024-06-05", BucketKey(timed, la))
	assert.Equal(t, "2024-06-06", BucketKey(allDay, la))
}

func TestCanonicalEvent_Validate(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	valid := event("ok", SourceNative, start)
	require.NoError(t, valid.Validate())

	noTitle := valid
	noTitle.Title = "  "
	assert.ErrorIs(t, noTitle.Validate(), ErrMalformedEvent)

	noStart := valid
	noStart.Start = time.Time{}
	assert.ErrorIs(t, noStart.Validate(), ErrMalformedEvent)

	backwards := valid
	backwards.End = start.Add(-time.Minute)
	assert.ErrorIs(t, backwards.Validate(), ErrMalformedEvent)

	marker := valid
	marker.End = marker.Start
	assert.NoError(t, marker.Validate(), "zero-duration markers are allowed")
}
