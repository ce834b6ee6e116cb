package handler

import (
	"encoding/json"
	"net/http"

	"github.com/albapepper/autotrack/internal/api/respond"
	"github.com/albapepper/autotrack/internal/vehicle"
)

type snapshotEnvelope struct {
	Snapshot *vehicle.Snapshot `json:"snapshot"`
	Meta     *snapshotMeta     `json:"meta,omitempty"`
}

type snapshotMeta struct {
	IsEmpty bool `json:"isEmpty"`
}

// GetSnapshot returns the full household document.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, isEmpty, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("snapshot load failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "STORAGE_READ", "Unable to load storage snapshot")
		return
	}
	respond.JSON(w, http.StatusOK, snapshotEnvelope{
		Snapshot: snap,
		Meta:     &snapshotMeta{IsEmpty: isEmpty},
	})
}

// PutSnapshot replaces the household document and returns the stored
// canonical form.
func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	var body snapshotEnvelope
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "BAD_JSON", "Invalid snapshot payload")
		return
	}

	saved, err := h.store.SaveSnapshot(r.Context(), body.Snapshot)
	if err != nil {
		h.logger.Error("snapshot save failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "STORAGE_WRITE", "Unable to save storage snapshot")
		return
	}
	respond.JSON(w, http.StatusOK, snapshotEnvelope{Snapshot: saved})
}
