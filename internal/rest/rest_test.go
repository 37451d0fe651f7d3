package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("move: %w", calendar.ErrImmutableSource), http.StatusForbidden},
		{calendar.ErrEventNotFound, http.StatusNotFound},
		{calendar.ErrMalformedEvent, http.StatusBadRequest},
		{timeutil.ErrInvalidTimezone, http.StatusBadRequest},
		{timeutil.ErrInvalidWindow, http.StatusBadRequest},
		{calendar.ErrPersistenceFailure, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, StatusFor(tt.err))
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteDomainError(rec, "Cannot move event", calendar.ErrImmutableSource)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Cannot move event", body.Error)
	assert.Equal(t, calendar.ErrImmutableSource.Error(), body.Details)
}
