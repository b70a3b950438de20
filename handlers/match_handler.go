package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okhomin/bracket-engine/services"
)

type MatchHandler struct {
	lifecycle   services.LifecycleService
	advancement services.AdvancementService
}

func NewMatchHandler(lifecycle services.LifecycleService, advancement services.AdvancementService) *MatchHandler {
	return &MatchHandler{lifecycle: lifecycle, advancement: advancement}
}

type reportResultRequest struct {
	WinnerEntryID int `json:"winner_entry_id"`
}

func parseMatchID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "matchID"))
}

func (h *MatchHandler) Report(w http.ResponseWriter, r *http.Request) {
	matchID, err := parseMatchID(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	var input reportResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	resolution, err := h.advancement.ReportResult(r.Context(), matchID, input.WinnerEntryID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"resolution": resolution}, nil)
}

func (h *MatchHandler) Override(w http.ResponseWriter, r *http.Request) {
	matchID, err := parseMatchID(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	var input reportResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	resolution, err := h.advancement.OverrideResult(r.Context(), matchID, input.WinnerEntryID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"resolution": resolution}, nil)
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	matches, err := h.advancement.ListMatches(r.Context(), tournament.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil)
}
