package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/autotrack/internal/api/respond"
	"github.com/albapepper/autotrack/internal/maintenance"
	"github.com/albapepper/autotrack/internal/vehicle"
)

type odometerRequest struct {
	Odometer int `json:"odometer"`
}

type maintenanceRequest struct {
	MaintenanceType string `json:"maintenanceType"`
}

type intervalsRequest struct {
	OilInterval  int `json:"oilInterval"`
	TireInterval int `json:"tireInterval"`
}

type reminderRequest struct {
	MaintenanceType string `json:"maintenanceType"`
	DateISO         string `json:"dateISO"`
}

// PostOdometer records a new odometer reading for one vehicle.
func (h *Handler) PostOdometer(w http.ResponseWriter, r *http.Request) {
	var body odometerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "BAD_JSON", "Invalid odometer payload")
		return
	}
	h.mutateSnapshot(w, r, func(snap *vehicle.Snapshot, now time.Time) error {
		return snap.UpdateOdometer(chi.URLParam(r, "vehicleID"), body.Odometer, now)
	})
}

// PostMaintenance logs a completed service for one vehicle.
func (h *Handler) PostMaintenance(w http.ResponseWriter, r *http.Request) {
	var body maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "BAD_JSON", "Invalid maintenance payload")
		return
	}
	h.mutateSnapshot(w, r, func(snap *vehicle.Snapshot, now time.Time) error {
		return snap.LogMaintenance(chi.URLParam(r, "vehicleID"), vehicle.MaintenanceType(body.MaintenanceType), now)
	})
}

// PostIntervals updates the mileage intervals for one vehicle.
func (h *Handler) PostIntervals(w http.ResponseWriter, r *http.Request) {
	var body intervalsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "BAD_JSON", "Invalid intervals payload")
		return
	}
	h.mutateSnapshot(w, r, func(snap *vehicle.Snapshot, now time.Time) error {
		return snap.UpdateIntervals(chi.URLParam(r, "vehicleID"), body.OilInterval, body.TireInterval, now)
	})
}

// PostReminder sets a manual due-date override for one vehicle.
func (h *Handler) PostReminder(w http.ResponseWriter, r *http.Request) {
	var body reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "BAD_JSON", "Invalid reminder payload")
		return
	}
	h.mutateSnapshot(w, r, func(snap *vehicle.Snapshot, now time.Time) error {
		return snap.SetServiceReminder(chi.URLParam(r, "vehicleID"),
			vehicle.MaintenanceType(body.MaintenanceType), body.DateISO, now)
	})
}

// DeleteReminder clears a manual due-date override.
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	h.mutateSnapshot(w, r, func(snap *vehicle.Snapshot, now time.Time) error {
		return snap.ClearServiceReminder(chi.URLParam(r, "vehicleID"),
			vehicle.MaintenanceType(chi.URLParam(r, "maintenanceType")), now)
	})
}

// mutateSnapshot loads the document, applies one action, persists it, and
// returns the stored form. Validation errors surface synchronously to the
// caller with a descriptive message.
func (h *Handler) mutateSnapshot(w http.ResponseWriter, r *http.Request, action func(*vehicle.Snapshot, time.Time) error) {
	ctx := r.Context()
	snap, _, err := h.store.Snapshot(ctx)
	if err != nil {
		h.logger.Error("snapshot load failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "STORAGE_READ", "Unable to load storage snapshot")
		return
	}

	if err := action(snap, time.Now()); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, vehicle.ErrVehicleNotFound) {
			status = http.StatusNotFound
		}
		respond.Error(w, status, "INVALID_ACTION", err.Error())
		return
	}

	saved, err := h.store.SaveSnapshot(ctx, snap)
	if err != nil {
		h.logger.Error("snapshot save failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "STORAGE_WRITE", "Unable to save storage snapshot")
		return
	}
	respond.JSON(w, http.StatusOK, snapshotEnvelope{Snapshot: saved})
}

type typeStatsResponse struct {
	RemainingMs int64   `json:"remainingMs"`
	WindowMs    int64   `json:"windowMs"`
	Progress    float64 `json:"progress"`
	DueDateISO  string  `json:"dueDateISO"`
	Manual      bool    `json:"manual"`
}

type statsResponse struct {
	VehicleID string            `json:"vehicleId"`
	Oil       typeStatsResponse `json:"oilChange"`
	Tire      typeStatsResponse `json:"tireRotation"`
}

// GetVehicleStats returns the computed maintenance schedule for one vehicle.
func (h *Handler) GetVehicleStats(w http.ResponseWriter, r *http.Request) {
	snap, _, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("snapshot load failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "STORAGE_READ", "Unable to load storage snapshot")
		return
	}

	vehicleID := chi.URLParam(r, "vehicleID")
	target := snap.State.Find(vehicleID)
	if target == nil {
		respond.Error(w, http.StatusNotFound, "VEHICLE_NOT_FOUND", "vehicle not found")
		return
	}

	stats := maintenance.ComputeStats(target, time.Now())
	respond.JSON(w, http.StatusOK, statsResponse{
		VehicleID: vehicleID,
		Oil:       toTypeStats(stats.Oil),
		Tire:      toTypeStats(stats.Tire),
	})
}

func toTypeStats(s maintenance.TypeStats) typeStatsResponse {
	return typeStatsResponse{
		RemainingMs: s.Remaining.Milliseconds(),
		WindowMs:    s.Window.Milliseconds(),
		Progress:    s.Progress,
		DueDateISO:  s.DueDateISO(),
		Manual:      s.Manual,
	}
}
