package handlers

import (
	"net/http"

	"github.com/okhomin/bracket-engine/services"
)

type DevHandler struct {
	lifecycle services.LifecycleService
	dev       services.DevService
}

func NewDevHandler(lifecycle services.LifecycleService, dev services.DevService) *DevHandler {
	return &DevHandler{lifecycle: lifecycle, dev: dev}
}

type seedDummiesRequest struct {
	Count int `json:"count"`
}

func (h *DevHandler) SeedDummies(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var input seedDummiesRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entries, err := h.dev.SeedDummies(r.Context(), tournament.ID, input.Count)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"entries": entries}, nil)
}

func (h *DevHandler) ResolveDummyMatches(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	resolved, err := h.dev.ResolveDummyMatches(r.Context(), tournament.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"resolved": resolved}, nil)
}
