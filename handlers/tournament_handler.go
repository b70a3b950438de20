package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/services"
)

type TournamentHandler struct {
	lifecycle services.LifecycleService
}

func NewTournamentHandler(lifecycle services.LifecycleService) *TournamentHandler {
	return &TournamentHandler{lifecycle: lifecycle}
}

func parseGuildID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "guildID"), 10, 64)
}

// resolveTournament turns the {ref} URL parameter (numeric id or tournament
// code) into a tournament.
func resolveTournament(r *http.Request, lifecycle services.LifecycleService) (*models.Tournament, error) {
	ref := chi.URLParam(r, "ref")
	if ref == "" {
		return nil, errors.New("missing tournament reference")
	}
	return lifecycle.GetByCodeOrID(r.Context(), ref)
}

type createTournamentRequest struct {
	Name string `json:"name"`
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	guildID, err := parseGuildID(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid guild id"))
		return
	}

	var input createTournamentRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.lifecycle.Create(r.Context(), guildID, input.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	guildID, err := parseGuildID(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid guild id"))
		return
	}

	tournament, err := h.lifecycle.GetActiveForGuild(r.Context(), guildID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	guildID, err := parseGuildID(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid guild id"))
		return
	}

	tournaments, err := h.lifecycle.ListForGuild(r.Context(), guildID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil)
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil)
}

func (h *TournamentHandler) OpenRegistration(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.lifecycle.OpenRegistration)
}

func (h *TournamentHandler) CloseRegistration(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.lifecycle.CloseRegistration)
}

func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.lifecycle.Start)
}

func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.lifecycle.Cancel)
}

func (h *TournamentHandler) applyTransition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, tournamentID int) (*models.Tournament, error),
) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	updated, err := op(r.Context(), tournament.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": updated}, nil)
}
