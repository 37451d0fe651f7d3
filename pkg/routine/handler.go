package routine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/klokku/daybook/internal/rest"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/klokku/daybook/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service      *Service
	materializer *Materializer
}

type RuleDTO struct {
	Id              string   `json:"id"`
	Title           string   `json:"title"`
	Kind            string   `json:"kind"`
	Time            string   `json:"time"`
	Days            []string `json:"days"`
	DurationMinutes int      `json:"durationMinutes"`
	ValidFrom       string   `json:"validFrom,omitempty"`
	ValidUntil      string   `json:"validUntil,omitempty"`
	Enabled         bool     `json:"enabled"`
}

func NewHandler(service *Service, materializer *Materializer) *Handler {
	return &Handler{service: service, materializer: materializer}
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		rest.WriteDomainError(w, "Failed to list routines", err)
		return
	}
	dtos := make([]RuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, ruleToDTO(rule))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) StoreRule(w http.ResponseWriter, r *http.Request) {
	var dto RuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	rule, err := dtoToRule(dto)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid routine", err.Error())
		return
	}

	stored, err := h.service.StoreRule(r.Context(), rule)
	if err != nil {
		if errors.Is(err, ErrInvalidRule) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid routine", err.Error())
			return
		}
		rest.WriteDomainError(w, "Failed to store routine", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ruleToDTO(stored))
}

func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteRule(r.Context(), mux.Vars(r)["ruleId"])
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			rest.WriteError(w, http.StatusNotFound, "Routine not found", err.Error())
			return
		}
		rest.WriteDomainError(w, "Failed to delete routine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Materialize handles POST /api/routines/materialize?from=YYYY-MM-DD&to=YYYY-MM-DD[&tz=Zone].
// The zone defaults to the user's home timezone.
func (h *Handler) Materialize(w http.ResponseWriter, r *http.Request) {
	window, err := timeutil.ParseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid date window", err.Error())
		return
	}
	zone := r.URL.Query().Get("tz")
	if zone == "" {
		currentUser, err := user.CurrentUser(r.Context())
		if err != nil {
			rest.WriteDomainError(w, "Failed to get current user", err)
			return
		}
		zone = currentUser.Settings.Timezone
	}

	result, err := h.materializer.MaterializeRoutines(r.Context(), window, zone)
	if err != nil {
		rest.WriteDomainError(w, "Failed to materialize routines", err)
		return
	}
	log.Debugf("materialize %s in %s: %+v", window, zone, result)
	rest.WriteJSON(w, http.StatusOK, result)
}

func ruleToDTO(rule Rule) RuleDTO {
	days := make([]string, 0, len(rule.DaysOfWeek))
	for _, d := range rule.DaysOfWeek {
		days = append(days, strings.ToLower(d.String()[:3]))
	}
	dto := RuleDTO{
		Id:              rule.ID,
		Title:           rule.Title,
		Kind:            string(rule.Kind),
		Time:            rule.TimeOfDay.String(),
		Days:            days,
		DurationMinutes: rule.DurationMinutes,
		Enabled:         rule.Enabled,
	}
	if !rule.ValidFrom.IsZero() {
		dto.ValidFrom = rule.ValidFrom.Key()
	}
	if !rule.ValidUntil.IsZero() {
		dto.ValidUntil = rule.ValidUntil.Key()
	}
	return dto
}

func dtoToRule(dto RuleDTO) (Rule, error) {
	clock, err := timeutil.ParseClock(dto.Time)
	if err != nil {
		return Rule{}, err
	}
	days, err := parseDays(dto.Days)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{
		ID:              dto.Id,
		Title:           dto.Title,
		Kind:            Kind(dto.Kind),
		TimeOfDay:       clock,
		DaysOfWeek:      days,
		DurationMinutes: dto.DurationMinutes,
		Enabled:         dto.Enabled,
	}
	if rule.Kind == "" {
		rule.Kind = KindCustom
	}
	if dto.ValidFrom != "" {
		if rule.ValidFrom, err = timeutil.ParseDate(dto.ValidFrom); err != nil {
			return Rule{}, err
		}
	}
	if dto.ValidUntil != "" {
		if rule.ValidUntil, err = timeutil.ParseDate(dto.ValidUntil); err != nil {
			return Rule{}, err
		}
	}
	return rule, nil
}

