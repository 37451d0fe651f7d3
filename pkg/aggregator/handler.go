package aggregator

import (
	"net/http"
	"time"

	"github.com/klokku/daybook/internal/rest"
	"github.com/klokku/daybook/internal/utils"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/icsexport"
	"github.com/klokku/daybook/pkg/position"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service  *Service
	minimums position.Minimums
	clock    utils.Clock
}

func NewHandler(service *Service, minimums position.Minimums, clock utils.Clock) *Handler {
	if minimums == nil {
		minimums = position.DefaultMinimums()
	}
	return &Handler{service: service, minimums: minimums, clock: clock}
}

type EventDTO struct {
	Id           string    `json:"id"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	AllDay       bool      `json:"allDay"`
	Source       string    `json:"source"`
	CalendarName string    `json:"calendarName"`
	Location     string    `json:"location,omitempty"`
	Description  string    `json:"description,omitempty"`
	Editable     bool      `json:"editable"`
}

type EventsResponse struct {
	From        string                `json:"from"`
	To          string                `json:"to"`
	Timezone    string                `json:"timezone"`
	Days        map[string][]EventDTO `json:"days"`
	Diagnostics []Diagnostic          `json:"diagnostics"`
}

type PositionedEventDTO struct {
	EventDTO
	TopMinutes      int     `json:"topMinutes"`
	HeightMinutes   int     `json:"heightMinutes"`
	DurationMinutes int     `json:"durationMinutes"`
	TopFraction     float64 `json:"topFraction"`
	HeightFraction  float64 `json:"heightFraction"`
	Column          int     `json:"column"`
	Columns         int     `json:"columns"`
}

type DayLayoutDTO struct {
	Date   string               `json:"date"`
	AllDay []EventDTO           `json:"allDay"`
	Timed  []PositionedEventDTO `json:"timed"`
}

type LayoutResponse struct {
	Timezone    string         `json:"timezone"`
	View        string         `json:"view"`
	Days        []DayLayoutDTO `json:"days"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) (Result, bool) {
	window, err := timeutil.ParseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date window", "'from' and 'to' must be YYYY-MM-DD dates, 'to' not before 'from'")
		return Result{}, false
	}
	result, err := h.service.View(r.Context(), window, r.URL.Query().Get("tz"))
	if err != nil {
		rest.WriteDomainError(w, "Failed to aggregate events", err)
		return Result{}, false
	}
	return result, true
}

// GetEvents handles GET /api/events?from=YYYY-MM-DD&to=YYYY-MM-DD[&tz=Zone].
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	result, ok := h.aggregate(w, r)
	if !ok {
		return
	}
	days := make(map[string][]EventDTO, len(result.View.Buckets))
	for key, events := range result.View.Buckets {
		dtos := make([]EventDTO, 0, len(events))
		for _, e := range events {
			dtos = append(dtos, ToDTO(e, result.View.Location))
		}
		days[key] = dtos
	}
	rest.WriteJSON(w, http.StatusOK, EventsResponse{
		From:        result.View.Window.Start.Key(),
		To:          result.View.Window.End.Key(),
		Timezone:    result.View.Zone,
		Days:        days,
		Diagnostics: nonNil(result.Diagnostics),
	})
}

// GetLayout handles GET /api/events/layout with the parameters of GetEvents and view=day|week|month.
func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	view, err := position.ParseViewKind(r.URL.Query().Get("view"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid view", err.Error())
		return
	}
	result, ok := h.aggregate(w, r)
	if !ok {
		return
	}
	layouts := position.PositionAll(result.View, h.minimums.Options(view))
	days := make([]DayLayoutDTO, 0, len(layouts))
	for _, layout := range layouts {
		day := DayLayoutDTO{Date: layout.DateKey, AllDay: []EventDTO{}, Timed: []PositionedEventDTO{}}
		for _, e := range layout.AllDay {
			day.AllDay = append(day.AllDay, ToDTO(e, result.View.Location))
		}
		for _, p := range layout.Timed {
			day.Timed = append(day.Timed, PositionedEventDTO{
				EventDTO:        ToDTO(p.Event, result.View.Location),
				TopMinutes:      p.TopMinutes,
				HeightMinutes:   p.HeightMinutes,
				DurationMinutes: p.DurationMinutes,
				TopFraction:     p.TopFraction,
				HeightFraction:  p.HeightFraction,
				Column:          p.Column,
				Columns:         p.Columns,
			})
		}
		days = append(days, day)
	}
	rest.WriteJSON(w, http.StatusOK, LayoutResponse{
		Timezone:    result.View.Zone,
		View:        string(view),
		Days:        days,
		Diagnostics: nonNil(result.Diagnostics),
	})
}

// ExportICS handles GET /api/events.ics with the parameters of GetEvents.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	result, ok := h.aggregate(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="daybook.ics"`)
	if err := icsexport.Write(w, result.View, "Daybook", h.clock.Now()); err != nil {
		log.Errorf("failed to write ICS feed: %v", err)
	}
}

// ToDTO renders e with times in loc. All-day events keep their UTC dates.
func ToDTO(e calendar.CanonicalEvent, loc *time.Location) EventDTO {
	start, end := e.Start.In(loc), e.End.In(loc)
	if e.AllDay {
		start, end = e.Start.UTC(), e.End.UTC()
	}
	return EventDTO{
		Id:           e.ID,
		Title:        e.Title,
		Start:        start,
		End:          end,
		AllDay:       e.AllDay,
		Source:       string(e.SourceType),
		CalendarName: e.SourceCalendarName,
		Location:     e.Location,
		Description:  e.Description,
		Editable:     e.SourceType.Mutable(),
	}
}

func nonNil(diagnostics []Diagnostic) []Diagnostic {
	if diagnostics == nil {
		return []Diagnostic{}
	}
	return diagnostics
}
