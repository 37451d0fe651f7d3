package reschedule

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/klokku/daybook/internal/rest"
	"github.com/klokku/daybook/pkg/aggregator"
	"github.com/klokku/daybook/pkg/position"
	"github.com/klokku/daybook/pkg/timeutil"
)

type Handler struct {
	views    *aggregator.Service
	resolver *Resolver
}

func NewHandler(views *aggregator.Service, resolver *Resolver) *Handler {
	return &Handler{views: views, resolver: resolver}
}

// DropRequest describes a drag-and-drop gesture. The offset is given in minutes, or in
// pixels together with the height of the day column.
type DropRequest struct {
	EventId       string   `json:"eventId"`
	TargetDate    string   `json:"targetDate"`
	OffsetMinutes *int     `json:"offsetMinutes,omitempty"`
	OffsetPixels  *float64 `json:"offsetPixels,omitempty"`
	DayHeight     float64  `json:"dayHeight,omitempty"`
	SnapMinutes   int      `json:"snapMinutes,omitempty"`
	// From and To are the dates of the view the gesture happened in; they default to TargetDate.
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Timezone string `json:"tz,omitempty"`
}

type DropResponse struct {
	EventId  string    `json:"eventId"`
	NewStart time.Time `json:"newStart"`
	NewEnd   time.Time `json:"newEnd"`
	Date     string    `json:"date"`
}

func (req DropRequest) offset() (int, bool) {
	switch {
	case req.OffsetMinutes != nil:
		return *req.OffsetMinutes, true
	case req.OffsetPixels != nil && req.DayHeight > 0:
		return position.MinutesFromPixels(*req.OffsetPixels, req.DayHeight, req.SnapMinutes), true
	}
	return 0, false
}

func (req DropRequest) window() (timeutil.DateWindow, error) {
	from, to := req.From, req.To
	if from == "" {
		from = req.TargetDate
	}
	if to == "" {
		to = req.TargetDate
	}
	return timeutil.ParseWindow(from, to)
}

// Reschedule handles POST /api/events/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.EventId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", "'eventId' is required")
		return
	}
	offset, ok := req.offset()
	if !ok {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", "'offsetMinutes' or 'offsetPixels' with 'dayHeight' is required")
		return
	}
	if _, err := timeutil.ParseDate(req.TargetDate); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid target date", err.Error())
		return
	}
	window, err := req.window()
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date window", err.Error())
		return
	}

	result, err := h.views.View(r.Context(), window, req.Timezone)
	if err != nil {
		rest.WriteDomainError(w, "Failed to load events", err)
		return
	}
	view := result.View
	moved, err := h.resolver.ResolveDrop(r.Context(), &view, req.EventId, req.TargetDate, offset)
	if err != nil {
		rest.WriteDomainError(w, "Failed to reschedule event", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, DropResponse{
		EventId:  moved.Event.ID,
		NewStart: moved.NewStart.In(view.Location),
		NewEnd:   moved.NewEnd.In(view.Location),
		Date:     moved.ToKey,
	})
}
