package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/albapepper/autotrack/internal/vehicle"
)

// NotificationStateMap returns the full stage map for single-pass diffing,
// keyed "vehicleId:maintenanceType".
func (s *Store) NotificationStateMap(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vehicle_id, maintenance_type, stage_key
		FROM notification_state`)
	if err != nil {
		return nil, fmt.Errorf("querying notification state: %w", err)
	}
	defer rows.Close()

	state := map[string]string{}
	for rows.Next() {
		var vehicleID, maintenanceType, stageKey string
		if err := rows.Scan(&vehicleID, &maintenanceType, &stageKey); err != nil {
			return nil, fmt.Errorf("scanning notification state: %w", err)
		}
		state[vehicleID+":"+maintenanceType] = stageKey
	}
	return state, rows.Err()
}

// SetNotificationStage records the last-fired stage key for one
// (vehicle, maintenance type) row. Malformed input returns false rather than
// an error: this runs from a best-effort background loop.
func (s *Store) SetNotificationStage(ctx context.Context, vehicleID string, t vehicle.MaintenanceType, stageKey string) (bool, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	stageKey = strings.TrimSpace(stageKey)
	if vehicleID == "" || stageKey == "" || !t.Valid() {
		return false, nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_state (vehicle_id, maintenance_type, stage_key, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(vehicle_id, maintenance_type) DO UPDATE SET
			stage_key = excluded.stage_key,
			updated_at = excluded.updated_at`,
		vehicleID, string(t), stageKey, s.stamp())
	if err != nil {
		return false, fmt.Errorf("setting notification stage: %w", err)
	}
	return true, nil
}

// ClearNotificationStage removes the stored stage for one row. Idempotent.
func (s *Store) ClearNotificationStage(ctx context.Context, vehicleID string, t vehicle.MaintenanceType) (bool, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" || !t.Valid() {
		return false, nil
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM notification_state
		WHERE vehicle_id = ? AND maintenance_type = ?`,
		vehicleID, string(t))
	if err != nil {
		return false, fmt.Errorf("clearing notification stage: %w", err)
	}
	return true, nil
}

func splitStateKey(key string) (vehicleID string, maintenanceType string, ok bool) {
	vehicleID, maintenanceType, found := strings.Cut(key, ":")
	if !found || vehicleID == "" {
		return "", "", false
	}
	if !vehicle.MaintenanceType(maintenanceType).Valid() {
		return "", "", false
	}
	return vehicleID, maintenanceType, true
}
