package outlook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	pageSize       = 100
	untitled       = "(No title)"
)

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	Id          string        `json:"id"`
	Subject     string        `json:"subject"`
	BodyPreview string        `json:"bodyPreview"`
	IsAllDay    bool          `json:"isAllDay"`
	IsCancelled bool          `json:"isCancelled"`
	Start       graphDateTime `json:"start"`
	End         graphDateTime `json:"end"`
	Location    struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
}

type calendarView struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Adapter reads the calendarView of one Outlook calendar through Microsoft Graph.
type Adapter struct {
	client       *resty.Client
	calendarId   string
	calendarName string
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// NewAdapter creates an adapter whose requests are authorized by tokenSource.
func NewAdapter(tokenSource oauth2.TokenSource, calendarId string, calendarName string, opts Options) *Adapter {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: tokenSource},
		Timeout:   opts.Timeout,
	}
	return newAdapter(resty.NewWithClient(httpClient), calendarId, calendarName, opts)
}

func newAdapter(client *resty.Client, calendarId string, calendarName string, opts Options) *Adapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client.
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Prefer", `outlook.timezone="UTC"`).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})
	if calendarName == "" {
		calendarName = "Outlook"
	}
	return &Adapter{client: client, calendarId: calendarId, calendarName: calendarName}
}

func (a *Adapter) Name() string {
	return "outlook:" + a.calendarName
}

func (a *Adapter) SourceType() calendar.SourceType {
	return calendar.SourceOutlook
}

func (a *Adapter) viewPath() string {
	if a.calendarId == "" {
		return "/me/calendarView"
	}
	return "/me/calendars/" + url.PathEscape(a.calendarId) + "/calendarView"
}

func (a *Adapter) Fetch(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
	req := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"startDateTime": r.From.UTC().Format(time.RFC3339),
			"endDateTime":   r.To.UTC().Format(time.RFC3339),
			"$top":          fmt.Sprint(pageSize),
			"$orderby":      "start/dateTime",
			"$select":       "id,subject,bodyPreview,isAllDay,isCancelled,start,end,location",
		})
	next := a.viewPath()

	var events []calendar.CanonicalEvent
	for next != "" {
		var page calendarView
		var failure graphError
		resp, err := req.SetResult(&page).SetError(&failure).Get(next)
		if err != nil {
			err := fmt.Errorf("%w: outlook request failed: %v", calendar.ErrAdapterUnavailable, err)
			log.Error(err)
			return nil, err
		}
		if resp.IsError() {
			err := fmt.Errorf("%w: outlook returned %d %s: %s", calendar.ErrAdapterUnavailable, resp.StatusCode(), failure.Error.Code, failure.Error.Message)
			log.Error(err)
			return nil, err
		}
		events = append(events, a.toCanonicalEvents(page.Value)...)

		// nextLink is absolute and already carries the query.
		next = page.NextLink
		req = a.client.R().SetContext(ctx)
	}
	return events, nil
}

func (a *Adapter) toCanonicalEvents(items []graphEvent) []calendar.CanonicalEvent {
	events := make([]calendar.CanonicalEvent, 0, len(items))
	for _, item := range items {
		if item.IsCancelled {
			continue
		}
		event, err := a.toCanonical(item)
		if err != nil {
			log.Warnf("skipping Outlook event %s: %v", item.Id, err)
			continue
		}
		events = append(events, event)
	}
	return events
}

func (a *Adapter) toCanonical(item graphEvent) (calendar.CanonicalEvent, error) {
	start, err := parseGraphTime(item.Start)
	if err != nil {
		return calendar.CanonicalEvent{}, err
	}
	end, err := parseGraphTime(item.End)
	if err != nil {
		return calendar.CanonicalEvent{}, err
	}
	if item.IsAllDay {
		start = timeutil.DateOf(start.UTC()).UTCMidnight()
		end = timeutil.DateOf(end.UTC()).UTCMidnight()
	}
	title := strings.TrimSpace(item.Subject)
	if title == "" {
		title = untitled
	}
	return calendar.CanonicalEvent{
		ID:                 "outlook:" + item.Id,
		Title:              title,
		Start:              start,
		End:                end,
		AllDay:             item.IsAllDay,
		SourceType:         calendar.SourceOutlook,
		SourceCalendarName: a.calendarName,
		Location:           item.Location.DisplayName,
		Description:        item.BodyPreview,
	}, nil
}

// parseGraphTime interprets Graph's zone-less dateTime in its timeZone field. Windows zone
// names are not resolved; the Prefer header asks for UTC.
func parseGraphTime(t graphDateTime) (time.Time, error) {
	loc := time.UTC
	if t.TimeZone != "" && !strings.EqualFold(t.TimeZone, "UTC") {
		zone, err := timeutil.LoadZone(t.TimeZone)
		if err != nil {
			log.Debugf("unknown Graph timezone %q, assuming UTC", t.TimeZone)
		} else {
			loc = zone
		}
	}
	instant, _, err := timeutil.ParseTimestamp(t.DateTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", calendar.ErrMalformedEvent, err)
	}
	return instant, nil
}
