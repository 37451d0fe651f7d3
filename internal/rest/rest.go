package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message string, details string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, calendar.ErrImmutableSource):
		return http.StatusForbidden
	case errors.Is(err, calendar.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, calendar.ErrMalformedEvent),
		errors.Is(err, timeutil.ErrInvalidTimezone),
		errors.Is(err, timeutil.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, calendar.ErrPersistenceFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err with the status StatusFor picks.
func WriteDomainError(w http.ResponseWriter, message string, err error) {
	WriteError(w, StatusFor(err), message, err.Error())
}
