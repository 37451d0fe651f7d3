package caldav

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/klokku/daybook/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

// Adapter reads one CalDAV calendar collection, typically an iCloud calendar
// authenticated with an app-specific password.
type Adapter struct {
	client       *caldav.Client
	calendarPath string
	calendarName string
	// err is set when the calendar URL could not be used; Fetch reports it.
	err error
}

type Options struct {
	CalendarURL  string
	Username     string
	Password     string
	CalendarName string
	Timeout      time.Duration
}

func NewAdapter(opts Options) *Adapter {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	name := opts.CalendarName
	if name == "" {
		name = "Apple"
	}
	a := &Adapter{calendarName: name}

	u, err := url.Parse(opts.CalendarURL)
	if err != nil {
		a.err = fmt.Errorf("invalid calendar URL: %w", err)
		return a
	}
	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: timeout}, opts.Username, opts.Password)
	a.client, a.err = caldav.NewClient(httpClient, opts.CalendarURL)
	a.calendarPath = u.Path
	if a.calendarPath == "" {
		a.calendarPath = "/"
	}
	return a
}

func (a *Adapter) Name() string {
	return "apple:" + a.calendarName
}

func (a *Adapter) SourceType() calendar.SourceType {
	return calendar.SourceApple
}

// eventQuery asks for every VEVENT overlapping r with all its properties.
func eventQuery(r calendar.TimeRange) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: r.From.UTC(),
				End:   r.To.UTC(),
			}},
		},
	}
}

func (a *Adapter) Fetch(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
	if a.err != nil {
		return nil, fmt.Errorf("%w: %v", calendar.ErrAdapterUnavailable, a.err)
	}
	objects, err := a.client.QueryCalendar(ctx, a.calendarPath, eventQuery(r))
	if err != nil {
		log.Errorf("CalDAV query of %s failed: %v", a.calendarName, err)
		return nil, fmt.Errorf("%w: %v", calendar.ErrAdapterUnavailable, err)
	}

	var events []calendar.CanonicalEvent
	for _, object := range objects {
		if object.Data == nil {
			continue
		}
		decoded, err := decodeCalendar(object.Data, a.calendarName, r)
		if err != nil {
			log.Warnf("skipping CalDAV object %s: %v", object.Path, err)
			continue
		}
		events = append(events, decoded...)
	}
	log.Debugf("CalDAV calendar %s returned %d events", a.calendarName, len(events))
	return events, nil
}
