package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/albapepper/autotrack/internal/vehicle"
)

// Snapshot loads the full household document. An empty database yields the
// template-derived default snapshot and isEmpty=true without writing anything.
func (s *Store) Snapshot(ctx context.Context) (snap *vehicle.Snapshot, isEmpty bool, err error) {
	var probe string
	err = s.db.QueryRowContext(ctx, "SELECT id FROM vehicles LIMIT 1").Scan(&probe)
	if err == sql.ErrNoRows {
		return vehicle.DefaultSnapshot(s.now()), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("probing vehicles: %w", err)
	}

	snap, err = s.readSnapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	return snap, false, nil
}

// SaveSnapshot normalizes and persists a snapshot, replacing the stored
// document wholesale, then returns the canonical stored form.
func (s *Store) SaveSnapshot(ctx context.Context, input *vehicle.Snapshot) (*vehicle.Snapshot, error) {
	normalized := vehicle.NormalizeSnapshot(input, s.now())
	if err := s.writeSnapshot(ctx, normalized); err != nil {
		return nil, err
	}
	return s.readSnapshot(ctx)
}

func (s *Store) readSnapshot(ctx context.Context) (*vehicle.Snapshot, error) {
	vehicles, err := s.readVehicles(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.readHistory(ctx)
	if err != nil {
		return nil, err
	}
	calendarEvents, err := s.readReminders(ctx)
	if err != nil {
		return nil, err
	}
	settings, selectedVehicleID, err := s.readSettings(ctx)
	if err != nil {
		return nil, err
	}
	notificationState, err := s.NotificationStateMap(ctx)
	if err != nil {
		return nil, err
	}
	settings.NotificationState = notificationState

	raw := &vehicle.Snapshot{
		State: vehicle.State{
			Vehicles:          vehicles,
			SelectedVehicleID: selectedVehicleID,
			History:           history,
		},
		CalendarEvents: calendarEvents,
		Settings:       settings,
	}
	return vehicle.NormalizeSnapshot(raw, s.now()), nil
}

func (s *Store) readVehicles(ctx context.Context) ([]vehicle.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, image_path, image_scale, image_shift_x, odometer,
		       oil_interval_miles, tire_interval_miles,
		       oil_interval_months, tire_interval_months,
		       last_oil_change_odometer, last_tire_rotation_odometer,
		       last_oil_change_at, last_tire_rotation_at,
		       oil_due_override_at, tire_due_override_at,
		       created_at, updated_at
		FROM vehicles
		ORDER BY sort_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []vehicle.Vehicle
	for rows.Next() {
		var v vehicle.Vehicle
		var imageScale sql.NullFloat64
		var imageShiftX, oilOverride, tireOverride sql.NullString
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Image, &imageScale, &imageShiftX, &v.Odometer,
			&v.OilInterval, &v.TireInterval,
			&v.OilIntervalMonths, &v.TireIntervalMonths,
			&v.LastOilChangeOdometer, &v.LastTireRotationOdometer,
			&v.LastOilChangeDateISO, &v.LastTireRotationDateISO,
			&oilOverride, &tireOverride,
			&v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning vehicle: %w", err)
		}
		if imageScale.Valid {
			scale := imageScale.Float64
			v.ImageScale = &scale
		}
		if imageShiftX.Valid {
			shift := imageShiftX.String
			v.ImageShiftX = &shift
		}
		if oilOverride.Valid {
			value := oilOverride.String
			v.ServiceOverrides.OilChange = &value
		}
		if tireOverride.Valid {
			value := tireOverride.String
			v.ServiceOverrides.TireRotation = &value
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (s *Store) readHistory(ctx context.Context) ([]vehicle.HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_id, event_type, mileage, details, occurred_at
		FROM history_events
		ORDER BY occurred_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	history := []vehicle.HistoryEvent{}
	for rows.Next() {
		var e vehicle.HistoryEvent
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.Type, &e.Mileage, &e.Details, &e.DateISO); err != nil {
			return nil, fmt.Errorf("scanning history event: %w", err)
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

func (s *Store) readReminders(ctx context.Context) (map[string][]vehicle.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_id, service_type, scheduled_for, title, location,
		       remind_lead, created_at, updated_at
		FROM service_reminders
		ORDER BY scheduled_for ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	events := map[string][]vehicle.CalendarEvent{}
	for rows.Next() {
		var e vehicle.CalendarEvent
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.ServiceType, &e.DateISO,
			&e.Title, &e.Location, &e.RemindLead, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		events[e.VehicleID] = append(events[e.VehicleID], e)
	}
	return events, rows.Err()
}

func (s *Store) readSettings(ctx context.Context) (vehicle.Settings, string, error) {
	var settings vehicle.Settings
	var selectedVehicleID sql.NullString
	var pwaJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT selected_vehicle_id, theme_preference, pwa_settings_json,
		       vapid_public_key, last_tab
		FROM app_settings
		WHERE id = 1`).Scan(
		&selectedVehicleID, &settings.ThemePreference, &pwaJSON,
		&settings.VAPIDPublicKey, &settings.LastTab)
	if err == sql.ErrNoRows {
		settings.PWASettings = vehicle.DefaultPWASettings()
		return settings, "", nil
	}
	if err != nil {
		return settings, "", fmt.Errorf("querying settings: %w", err)
	}

	pwa := vehicle.DefaultPWASettings()
	_ = json.Unmarshal([]byte(pwaJSON), &pwa)
	settings.PWASettings = pwa
	return settings, selectedVehicleID.String, nil
}

func (s *Store) writeSnapshot(ctx context.Context, snap *vehicle.Snapshot) error {
	timestamp := s.stamp()

	return s.transact(func(tx *sql.Tx) error {
		for _, table := range []string{"history_events", "service_reminders", "notification_state", "vehicles"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		for i, v := range snap.State.Vehicles {
			var imageScale any
			if v.ImageScale != nil {
				imageScale = *v.ImageScale
			}
			var imageShiftX any
			if v.ImageShiftX != nil {
				imageShiftX = *v.ImageShiftX
			}
			var oilOverride, tireOverride any
			if v.ServiceOverrides.OilChange != nil {
				oilOverride = *v.ServiceOverrides.OilChange
			}
			if v.ServiceOverrides.TireRotation != nil {
				tireOverride = *v.ServiceOverrides.TireRotation
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO vehicles (
					id, sort_order, name, image_path, image_scale, image_shift_x,
					odometer, oil_interval_miles, tire_interval_miles,
					oil_interval_months, tire_interval_months,
					last_oil_change_odometer, last_tire_rotation_odometer,
					last_oil_change_at, last_tire_rotation_at,
					oil_due_override_at, tire_due_override_at,
					created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				v.ID, i, v.Name, v.Image, imageScale, imageShiftX,
				v.Odometer, v.OilInterval, v.TireInterval,
				v.OilIntervalMonths, v.TireIntervalMonths,
				v.LastOilChangeOdometer, v.LastTireRotationOdometer,
				orStamp(v.LastOilChangeDateISO, timestamp), orStamp(v.LastTireRotationDateISO, timestamp),
				oilOverride, tireOverride,
				orStamp(v.CreatedAt, timestamp), orStamp(v.UpdatedAt, timestamp),
			); err != nil {
				return fmt.Errorf("inserting vehicle %s: %w", v.ID, err)
			}
		}

		for _, e := range snap.State.History {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO history_events (id, vehicle_id, event_type, mileage, details, occurred_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, e.VehicleID, e.Type, e.Mileage, e.Details, orStamp(e.DateISO, timestamp),
			); err != nil {
				return fmt.Errorf("inserting history event %s: %w", e.ID, err)
			}
		}

		for _, events := range snap.CalendarEvents {
			for _, e := range events {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO service_reminders (
						id, vehicle_id, service_type, scheduled_for,
						title, location, remind_lead, created_at, updated_at
					) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					e.ID, e.VehicleID, e.ServiceType, e.DateISO,
					orDefault(e.Title, "Service Reminder"), orDefault(e.Location, "No location"),
					orDefault(e.RemindLead, "15m"),
					orStamp(e.CreatedAt, timestamp), orStamp(e.UpdatedAt, timestamp),
				); err != nil {
					return fmt.Errorf("inserting reminder %s: %w", e.ID, err)
				}
			}
		}

		pwaJSON, err := json.Marshal(snap.Settings.PWASettings)
		if err != nil {
			return fmt.Errorf("marshalling pwa settings: %w", err)
		}
		var selected any
		if snap.State.SelectedVehicleID != "" {
			selected = snap.State.SelectedVehicleID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO app_settings (
				id, selected_vehicle_id, theme_preference, pwa_settings_json,
				vapid_public_key, last_tab, updated_at
			) VALUES (1, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				selected_vehicle_id = excluded.selected_vehicle_id,
				theme_preference = excluded.theme_preference,
				pwa_settings_json = excluded.pwa_settings_json,
				vapid_public_key = excluded.vapid_public_key,
				last_tab = excluded.last_tab,
				updated_at = excluded.updated_at`,
			selected, snap.Settings.ThemePreference, string(pwaJSON),
			snap.Settings.VAPIDPublicKey, snap.Settings.LastTab, timestamp,
		); err != nil {
			return fmt.Errorf("upserting settings: %w", err)
		}

		for key, stageKey := range snap.Settings.NotificationState {
			vehicleID, maintenanceType, ok := splitStateKey(key)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO notification_state (vehicle_id, maintenance_type, stage_key, updated_at)
				VALUES (?, ?, ?, ?)`,
				vehicleID, maintenanceType, stageKey, timestamp,
			); err != nil {
				return fmt.Errorf("inserting notification state %s: %w", key, err)
			}
		}
		return nil
	})
}

func orStamp(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
