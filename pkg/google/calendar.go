package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const untitled = "(No title)"

var ErrUnauthenticated = errors.New("google connection has no token, authentication is required")

// Adapter reads one Google calendar. Recurring events are expanded by the API.
type Adapter struct {
	service      *gcal.Service
	calendarId   string
	calendarName string
}

// NewAdapter builds an adapter authorized by tokenSource. Extra options are mainly used
// by tests to point the client at a fake endpoint.
func NewAdapter(ctx context.Context, tokenSource oauth2.TokenSource, calendarId string, calendarName string, opts ...option.ClientOption) (*Adapter, error) {
	if tokenSource == nil {
		return nil, ErrUnauthenticated
	}
	opts = append([]option.ClientOption{option.WithTokenSource(tokenSource)}, opts...)
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		err := fmt.Errorf("unable to create Google Calendar client: %w", err)
		log.Error(err)
		return nil, err
	}
	return NewAdapterWithService(service, calendarId, calendarName), nil
}

func NewAdapterWithService(service *gcal.Service, calendarId string, calendarName string) *Adapter {
	if calendarId == "" {
		calendarId = "primary"
	}
	if calendarName == "" {
		calendarName = calendarId
	}
	return &Adapter{service: service, calendarId: calendarId, calendarName: calendarName}
}

func (a *Adapter) Name() string {
	return "google:" + a.calendarName
}

func (a *Adapter) SourceType() calendar.SourceType {
	return calendar.SourceGoogle
}

func (a *Adapter) Fetch(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
	var events []calendar.CanonicalEvent
	err := a.service.Events.List(a.calendarId).
		TimeMin(r.From.Format(time.RFC3339)).
		TimeMax(r.To.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(false).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(page *gcal.Events) error {
			events = append(events, a.toCanonicalEvents(page.Items)...)
			return nil
		})
	if err != nil {
		err := fmt.Errorf("%w: unable to retrieve events from Google Calendar %s: %v", calendar.ErrAdapterUnavailable, a.calendarId, err)
		log.Error(err)
		return nil, err
	}
	return events, nil
}

func (a *Adapter) toCanonicalEvents(items []*gcal.Event) []calendar.CanonicalEvent {
	events := make([]calendar.CanonicalEvent, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		event, err := a.toCanonical(item)
		if err != nil {
			log.Warnf("skipping Google event %s: %v", item.Id, err)
			continue
		}
		events = append(events, event)
	}
	return events
}

func (a *Adapter) toCanonical(item *gcal.Event) (calendar.CanonicalEvent, error) {
	if item.Start == nil || item.End == nil {
		return calendar.CanonicalEvent{}, fmt.Errorf("%w: missing start or end", calendar.ErrMalformedEvent)
	}
	start, allDay, err := parseEventTime(item.Start)
	if err != nil {
		return calendar.CanonicalEvent{}, err
	}
	end, _, err := parseEventTime(item.End)
	if err != nil {
		return calendar.CanonicalEvent{}, err
	}
	title := strings.TrimSpace(item.Summary)
	if title == "" {
		title = untitled
	}
	return calendar.CanonicalEvent{
		ID:                 "google:" + item.Id,
		Title:              title,
		Start:              start,
		End:                end,
		AllDay:             allDay,
		SourceType:         calendar.SourceGoogle,
		SourceCalendarName: a.calendarName,
		Location:           item.Location,
		Description:        item.Description,
	}, nil
}

// parseEventTime reads either the all-day Date or the DateTime, resolving a floating
// DateTime in the event's own zone.
func parseEventTime(t *gcal.EventDateTime) (time.Time, bool, error) {
	if t.Date != "" {
		d, err := timeutil.ParseDate(t.Date)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", calendar.ErrMalformedEvent, err)
		}
		return d.UTCMidnight(), true, nil
	}
	loc := time.UTC
	if t.TimeZone != "" {
		if zone, err := timeutil.LoadZone(t.TimeZone); err == nil {
			loc = zone
		}
	}
	instant, allDay, err := timeutil.ParseTimestamp(t.DateTime, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", calendar.ErrMalformedEvent, err)
	}
	return instant, allDay, nil
}
