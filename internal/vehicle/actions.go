package vehicle

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action validation errors. Mutations fail loudly and synchronously so the
// interactive caller can show a message; nothing here is silently coerced.
var (
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrOdometerBackwards   = errors.New("odometer cannot go backwards")
	ErrUnknownMaintenance  = errors.New("unknown maintenance type")
	ErrInvalidReminderDate = errors.New("invalid reminder date")
)

// History event types.
const (
	EventOdometerUpdate  = "odometer_update"
	EventSettingsUpdated = "settings_updated"
)

func (s *Snapshot) appendHistory(vehicleID, eventType string, mileage int, details string, now time.Time) {
	entry := HistoryEvent{
		ID:        uuid.NewString(),
		VehicleID: vehicleID,
		Type:      eventType,
		Mileage:   mileage,
		Details:   details,
		DateISO:   Stamp(now),
	}
	s.State.History = append([]HistoryEvent{entry}, s.State.History...)
}

// UpdateOdometer records a new odometer reading. Readings are monotonically
// non-decreasing; a lower value is rejected.
func (s *Snapshot) UpdateOdometer(vehicleID string, odometer int, now time.Time) error {
	target := s.State.Find(vehicleID)
	if target == nil {
		return ErrVehicleNotFound
	}
	if odometer < target.Odometer {
		return ErrOdometerBackwards
	}
	target.Odometer = odometer
	target.UpdatedAt = Stamp(now)
	s.appendHistory(vehicleID, EventOdometerUpdate, odometer, "Odometer reading updated", now)
	return nil
}

// UpdateIntervals sets the mileage intervals for both maintenance types.
// Values are floored at 1 mile.
func (s *Snapshot) UpdateIntervals(vehicleID string, oilInterval, tireInterval int, now time.Time) error {
	target := s.State.Find(vehicleID)
	if target == nil {
		return ErrVehicleNotFound
	}
	target.OilInterval = maxInt(1, oilInterval)
	target.TireInterval = maxInt(1, tireInterval)
	target.UpdatedAt = Stamp(now)
	s.appendHistory(vehicleID, EventSettingsUpdated, target.Odometer,
		fmt.Sprintf("Intervals set to oil %d mi, tires %d mi", target.OilInterval, target.TireInterval), now)
	return nil
}

// LogMaintenance records a completed service: the last-service date resets to
// now, the last-service odometer to the current reading, and any manual
// override for the type is cleared.
func (s *Snapshot) LogMaintenance(vehicleID string, t MaintenanceType, now time.Time) error {
	if !t.Valid() {
		return ErrUnknownMaintenance
	}
	target := s.State.Find(vehicleID)
	if target == nil {
		return ErrVehicleNotFound
	}

	nowISO := Stamp(now)
	details := "Tire rotation logged"
	if t == OilChange {
		target.LastOilChangeOdometer = target.Odometer
		target.LastOilChangeDateISO = nowISO
		details = "Oil change logged"
	} else {
		target.LastTireRotationOdometer = target.Odometer
		target.LastTireRotationDateISO = nowISO
	}
	target.ServiceOverrides.Set(t, nil)
	target.UpdatedAt = nowISO

	s.appendHistory(vehicleID, string(t), target.Odometer, details, now)
	return nil
}

// SetServiceReminder stores a manual due-date override for a maintenance type.
func (s *Snapshot) SetServiceReminder(vehicleID string, t MaintenanceType, dateISO string, now time.Time) error {
	if !t.Valid() {
		return ErrUnknownMaintenance
	}
	target := s.State.Find(vehicleID)
	if target == nil {
		return ErrVehicleNotFound
	}
	reminder, ok := ParseTime(dateISO)
	if !ok {
		return ErrInvalidReminderDate
	}

	target.ServiceOverrides.Set(t, &dateISO)
	target.UpdatedAt = Stamp(now)

	s.appendHistory(vehicleID, EventSettingsUpdated, target.Odometer,
		fmt.Sprintf("%s reminder set for %s", serviceTitle(t), reminder.Format("Jan 2, 2006 3:04 PM")), now)
	return nil
}

// ClearServiceReminder removes a manual due-date override.
func (s *Snapshot) ClearServiceReminder(vehicleID string, t MaintenanceType, now time.Time) error {
	if !t.Valid() {
		return ErrUnknownMaintenance
	}
	target := s.State.Find(vehicleID)
	if target == nil {
		return ErrVehicleNotFound
	}

	target.ServiceOverrides.Set(t, nil)
	target.UpdatedAt = Stamp(now)

	s.appendHistory(vehicleID, EventSettingsUpdated, target.Odometer,
		fmt.Sprintf("%s reminder removed", serviceTitle(t)), now)
	return nil
}

func serviceTitle(t MaintenanceType) string {
	if t == OilChange {
		return "Oil change"
	}
	return "Tire rotation"
}
