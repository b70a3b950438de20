package handlers

import (
	"errors"
	"net/http"

	"github.com/okhomin/bracket-engine/services"
)

type AdminHandler struct {
	lifecycle services.LifecycleService
	admin     services.AdminService
}

func NewAdminHandler(lifecycle services.LifecycleService, admin services.AdminService) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle, admin: admin}
}

func (h *AdminHandler) FactoryReset(w http.ResponseWriter, r *http.Request) {
	guildID, err := parseGuildID(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid guild id"))
		return
	}

	if err := h.admin.FactoryReset(r.Context(), guildID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"message": "guild reset"}, nil)
}

func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	archived, err := h.admin.Archive(r.Context(), tournament.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournament": archived}, nil)
}
