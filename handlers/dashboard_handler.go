package handlers

import (
	"net/http"

	"github.com/okhomin/bracket-engine/services"
)

type DashboardHandler struct {
	lifecycle services.LifecycleService
	snapshots services.SnapshotService
}

func NewDashboardHandler(lifecycle services.LifecycleService, snapshots services.SnapshotService) *DashboardHandler {
	return &DashboardHandler{lifecycle: lifecycle, snapshots: snapshots}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	tournament, err := resolveTournament(r, h.lifecycle)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	snapshot, err := h.snapshots.BuildSnapshot(r.Context(), tournament.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"snapshot": snapshot}, nil)
}
