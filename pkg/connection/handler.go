package connection

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/daybook/internal/rest"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type ConnectionDTO struct {
	Id           int    `json:"id"`
	Provider     string `json:"provider"`
	CalendarId   string `json:"calendarId,omitempty"`
	CalendarName string `json:"calendarName,omitempty"`
	CalendarURL  string `json:"calendarUrl,omitempty"`
	Username     string `json:"username,omitempty"`
	Enabled      bool   `json:"enabled"`
	// Write-only credentials
	Password     string    `json:"password,omitempty"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenExpiry  *time.Time `json:"tokenExpiry,omitempty"`
}

func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	connections, err := h.service.ListConnections(r.Context())
	if err != nil {
		rest.WriteDomainError(w, "Failed to list connections", err)
		return
	}
	dtos := make([]ConnectionDTO, 0, len(connections))
	for _, c := range connections {
		dtos = append(dtos, toDTO(c))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) StoreConnection(w http.ResponseWriter, r *http.Request) {
	var dto ConnectionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	provider, err := ParseProvider(dto.Provider)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid connection", err.Error())
		return
	}
	c := Connection{
		Provider:     provider,
		CalendarId:   dto.CalendarId,
		CalendarName: dto.CalendarName,
		CalendarURL:  dto.CalendarURL,
		Username:     dto.Username,
		Password:     dto.Password,
		Enabled:      dto.Enabled,
	}
	if dto.AccessToken != "" || dto.RefreshToken != "" {
		c.Token = &oauth2.Token{AccessToken: dto.AccessToken, RefreshToken: dto.RefreshToken}
		if dto.TokenExpiry != nil {
			c.Token.Expiry = *dto.TokenExpiry
		}
	}

	stored, err := h.service.StoreConnection(r.Context(), c)
	if errors.Is(err, ErrInvalidConnection) {
		rest.WriteError(w, http.StatusBadRequest, "Invalid connection", err.Error())
		return
	}
	if err != nil {
		rest.WriteDomainError(w, "Failed to store connection", err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(stored))
}

func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["connectionId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid connection id", err.Error())
		return
	}
	err = h.service.DeleteConnection(r.Context(), id)
	if errors.Is(err, ErrConnectionNotFound) {
		rest.WriteError(w, http.StatusNotFound, "Connection not found", "")
		return
	}
	if err != nil {
		log.Errorf("failed to delete connection %d: %v", id, err)
		rest.WriteDomainError(w, "Failed to delete connection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toDTO(c Connection) ConnectionDTO {
	return ConnectionDTO{
		Id:           c.Id,
		Provider:     string(c.Provider),
		CalendarId:   c.CalendarId,
		CalendarName: c.CalendarName,
		CalendarURL:  c.CalendarURL,
		Username:     c.Username,
		Enabled:      c.Enabled,
	}
}
