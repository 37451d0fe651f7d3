package native

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/daybook/internal/rest"
	"github.com/klokku/daybook/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

type EventDTO struct {
	Id            string    `json:"id"`
	Title         string    `json:"title"`
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	AllDay        bool      `json:"allDay"`
	CalendarName  string    `json:"calendarName"`
	Location      string    `json:"location,omitempty"`
	Description   string    `json:"description,omitempty"`
	RecurrenceKey string    `json:"recurrenceKey,omitempty"`
}

func NewHandler(s *Service) *Handler {
	return &Handler{s}
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid from (date) format", "'from' must be in RFC3339 format")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid to (date) format", "'to' must be in RFC3339 format")
		return
	}

	events, err := h.service.GetEvents(r.Context(), from, to)
	if err != nil {
		rest.WriteDomainError(w, "Failed to get events", err)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), mux.Vars(r)["eventId"])
	if err != nil {
		rest.WriteDomainError(w, "Failed to get event", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(event))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var eventDTO EventDTO
	if err := json.NewDecoder(r.Body).Decode(&eventDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	created, err := h.service.CreateEvent(r.Context(), dtoToEvent(eventDTO))
	if err != nil {
		rest.WriteDomainError(w, "Failed to create event", err)
		return
	}
	log.Debugf("native event %s created", created.ID)
	rest.WriteJSON(w, http.StatusCreated, eventToDTO(created))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var eventDTO EventDTO
	if err := json.NewDecoder(r.Body).Decode(&eventDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	eventDTO.Id = mux.Vars(r)["eventId"]

	updated, err := h.service.UpdateEvent(r.Context(), dtoToEvent(eventDTO))
	if err != nil {
		rest.WriteDomainError(w, "Failed to update event", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(updated))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteEvent(r.Context(), mux.Vars(r)["eventId"])
	if err != nil {
		rest.WriteDomainError(w, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func eventToDTO(e calendar.CanonicalEvent) EventDTO {
	return EventDTO{
		Id:            e.ID,
		Title:         e.Title,
		StartTime:     e.Start,
		EndTime:       e.End,
		AllDay:        e.AllDay,
		CalendarName:  e.SourceCalendarName,
		Location:      e.Location,
		Description:   e.Description,
		RecurrenceKey: e.RecurrenceKey,
	}
}

func dtoToEvent(e EventDTO) calendar.CanonicalEvent {
	return calendar.CanonicalEvent{
		ID:                 e.Id,
		Title:              e.Title,
		Start:              e.StartTime,
		End:                e.EndTime,
		AllDay:             e.AllDay,
		SourceType:         calendar.SourceNative,
		SourceCalendarName: e.CalendarName,
		Location:           e.Location,
		Description:        e.Description,
	}
}
