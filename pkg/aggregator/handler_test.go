package aggregator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/daybook/internal/test_utils"
	"github.com/klokku/daybook/internal/utils"
	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/position"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adapterList []calendar.Adapter

func (a adapterList) ActiveAdapters(ctx context.Context) ([]calendar.Adapter, error) {
	return a, nil
}

func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := test_utils.TestUserContext(r.Context(), "")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func setupRouter(adapters ...calendar.Adapter) *mux.Router {
	service := NewService(New(nil, Config{AdapterTimeout: 50 * time.Millisecond}), adapterList(adapters))
	clock := &utils.MockClock{FixedNow: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	handler := NewHandler(service, position.DefaultMinimums(), clock)

	router := mux.NewRouter()
	router.Use(withUser)
	router.HandleFunc("/api/events", handler.GetEvents).Methods("GET")
	router.HandleFunc("/api/events/layout", handler.GetLayout).Methods("GET")
	router.HandleFunc("/api/events.ics", handler.ExportICS).Methods("GET")
	return router
}

func TestHandler_GetEvents(t *testing.T) {
	// given
	start := time.Date(2024, 6, 5, 7, 0, 0, 0, time.UTC)
	router := setupRouter(
		staticAdapter("native", calendar.SourceNative, event("n1", calendar.SourceNative, start, time.Hour)),
		hangingAdapter("outlook:slow"),
	)

	// when
	req := httptest.NewRequest(http.MethodGet, "/api/events?from=2024-06-05&to=2024-06-06", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// then
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response EventsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Europe/Warsaw", response.Timezone, "defaults to the user's zone")
	require.Len(t, response.Days["2024-06-05"], 1)
	dto := response.Days["2024-06-05"][0]
	assert.Equal(t, "n1", dto.Id)
	assert.True(t, dto.Editable)
	_, offset := dto.Start.Zone()
	assert.Equal(t, 2*3600, offset, "times are rendered in the display zone")
	require.Len(t, response.Diagnostics, 1)
	assert.Equal(t, AdapterUnavailable, response.Diagnostics[0].Kind)
}

func TestHandler_GetEvents_InvalidWindow(t *testing.T) {
	router := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/events?from=2024-06-06&to=2024-06-05", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetLayout(t *testing.T) {
	// given
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	router := setupRouter(staticAdapter("native", calendar.SourceNative, event("n1", calendar.SourceNative, start, 10*time.Minute)))

	// when
	req := httptest.NewRequest(http.MethodGet, "/api/events/layout?from=2024-06-04&to=2024-06-05&tz=UTC&view=month", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// then
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response LayoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Days, 2)
	assert.Empty(t, response.Days[0].Timed)
	require.Len(t, response.Days[1].Timed, 1)
	timed := response.Days[1].Timed[0]
	assert.Equal(t, 540, timed.TopMinutes)
	assert.Equal(t, 15, timed.HeightMinutes)
	assert.Equal(t, 10, timed.DurationMinutes)
}

func TestHandler_ExportICS(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	router := setupRouter(staticAdapter("native", calendar.SourceNative, event("n1", calendar.SourceNative, start, time.Hour)))

	req := httptest.NewRequest(http.MethodGet, "/api/events.ics?from=2024-06-05&to=2024-06-05", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, w.Body.String(), "UID:n1")
}
