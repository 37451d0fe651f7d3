package google

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const firstPage = `{
  "items": [
    {"id": "a1", "status": "confirmed", "summary": "Standup", "location": "Room 1",
     "start": {"dateTime": "2024-06-05T09:00:00+02:00"}, "end": {"dateTime": "2024-06-05T09:15:00+02:00"}},
    {"id": "a2", "status": "cancelled", "summary": "Gone",
     "start": {"dateTime": "2024-06-05T10:00:00Z"}, "end": {"dateTime": "2024-06-05T11:00:00Z"}}
  ],
  "nextPageToken": "page-2"
}`

const secondPage = `{
  "items": [
    {"id": "b1", "summary": "Holiday", "start": {"date": "2024-06-06"}, "end": {"date": "2024-06-07"}},
    {"id": "b2", "summary": "", "start": {"dateTime": "2024-06-06T08:00:00", "timeZone": "America/New_York"},
     "end": {"dateTime": "2024-06-06T09:00:00", "timeZone": "America/New_York"}},
    {"id": "b3", "summary": "Broken", "start": {"dateTime": "yesterday"}, "end": {"dateTime": "today"}}
  ]
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	service, err := gcal.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return NewAdapterWithService(service, "work@example.com", "Work")
}

func TestAdapter_Fetch(t *testing.T) {
	// given
	var requests atomic.Int32
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/events"), r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "2024-06-05T00:00:00Z", r.URL.Query().Get("timeMin"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "page-2" {
			fmt.Fprint(w, secondPage)
			return
		}
		fmt.Fprint(w, firstPage)
	})
	from := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)

	// when
	events, err := adapter.Fetch(context.Background(), calendar.TimeRange{From: from, To: from.AddDate(0, 0, 2)})

	// then
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
	require.Len(t, events, 3)

	assert.Equal(t, "google:a1", events[0].ID)
	assert.Equal(t, "Standup", events[0].Title)
	assert.Equal(t, time.Date(2024, 6, 5, 7, 0, 0, 0, time.UTC), events[0].Start.UTC())
	assert.Equal(t, calendar.SourceGoogle, events[0].SourceType)
	assert.Equal(t, "Work", events[0].SourceCalendarName)
	assert.Equal(t, "Room 1", events[0].Location)

	assert.True(t, events[1].AllDay)
	assert.Equal(t, time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC), events[1].Start)
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), events[1].End)

	assert.Equal(t, untitled, events[2].Title)
	assert.Equal(t, time.Date(2024, 6, 6, 12, 0, 0, 0, time.UTC), events[2].Start.UTC())
	for _, e := range events {
		assert.NoError(t, e.Validate())
	}
}

func TestAdapter_Fetch_Unavailable(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 401, "message": "invalid credentials"}}`, http.StatusUnauthorized)
	})

	_, err := adapter.Fetch(context.Background(), calendar.TimeRange{From: time.Now(), To: time.Now().Add(time.Hour)})

	assert.ErrorIs(t, err, calendar.ErrAdapterUnavailable)
}

func TestNewAdapter(t *testing.T) {
	_, err := NewAdapter(context.Background(), nil, "primary", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	adapter, err := NewAdapter(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), "", "")
	require.NoError(t, err)
	assert.Equal(t, "google:primary", adapter.Name())
	assert.Equal(t, calendar.SourceGoogle, adapter.SourceType())
}
