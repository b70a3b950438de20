package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okhomin/bracket-engine/services"
)

type EntryHandler struct {
	lifecycle    services.LifecycleService
	registration services.RegistrationService
}

func NewEntryHandler(lifecycle services.LifecycleService, registration services.RegistrationService) *EntryHandler {
	return &EntryHandler{lifecycle: lifecycle, registration: registration}
}

type registerRequest struct {
	PlayerID int64 `json:"player_id"`
}

func (h *EntryHandler) Register(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var input registerRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PlayerID <= 0 {
		badRequestResponse(w, r, errors.New("player_id must be positive"))
		return
	}

	entry, err := h.registration.Register(r.Context(), tournament.ID, input.PlayerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"entry": entry}, nil)
}

func (h *EntryHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid player id"))
		return
	}

	if err := h.registration.Unregister(r.Context(), tournament.ID, playerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"message": "entry removed"}, nil)
}

func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	entries, err := h.registration.ListEntries(r.Context(), tournament.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"entries": entries}, nil)
}
