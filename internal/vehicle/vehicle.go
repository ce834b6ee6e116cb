// Package vehicle holds the household domain model: tracked vehicles, the
// shared snapshot document, and the mutating actions the interactive app
// performs against it. All persisted timestamps are ISO-8601 strings; readers
// must tolerate malformed values, so parsing is centralized in ParseTime.
package vehicle

import (
	"time"
)

// MaintenanceType identifies one of the two tracked service items.
type MaintenanceType string

const (
	OilChange    MaintenanceType = "oil_change"
	TireRotation MaintenanceType = "tire_rotation"
)

// Types lists all maintenance types in evaluation order.
var Types = []MaintenanceType{OilChange, TireRotation}

// Valid reports whether t is a known maintenance type.
func (t MaintenanceType) Valid() bool {
	return t == OilChange || t == TireRotation
}

// Overrides holds optional manual due-date overrides per maintenance type.
// A nil entry means no override.
type Overrides struct {
	OilChange    *string `json:"oil_change"`
	TireRotation *string `json:"tire_rotation"`
}

// Get returns the override for a maintenance type, or nil.
func (o Overrides) Get(t MaintenanceType) *string {
	if t == OilChange {
		return o.OilChange
	}
	return o.TireRotation
}

// Set stores (or clears, with nil) the override for a maintenance type.
func (o *Overrides) Set(t MaintenanceType, value *string) {
	if t == OilChange {
		o.OilChange = value
		return
	}
	o.TireRotation = value
}

// Vehicle is one tracked car. Interval fields are hybrid: miles plus
// fractional months, whichever elapses first drives the due date.
type Vehicle struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	Image                    string    `json:"image"`
	ImageScale               *float64  `json:"imageScale,omitempty"`
	ImageShiftX              *string   `json:"imageShiftX,omitempty"`
	Odometer                 int       `json:"odometer"`
	OilInterval              int       `json:"oilInterval"`
	TireInterval             int       `json:"tireInterval"`
	OilIntervalMonths        float64   `json:"oilIntervalMonths"`
	TireIntervalMonths       float64   `json:"tireIntervalMonths"`
	LastOilChangeOdometer    int       `json:"lastOilChangeOdometer"`
	LastTireRotationOdometer int       `json:"lastTireRotationOdometer"`
	LastOilChangeDateISO     string    `json:"lastOilChangeDateISO"`
	LastTireRotationDateISO  string    `json:"lastTireRotationDateISO"`
	ServiceOverrides         Overrides `json:"serviceOverrides"`
	CreatedAt                string    `json:"createdAt"`
	UpdatedAt                string    `json:"updatedAt"`
}

// LastServiceDateISO returns the last-service timestamp for a maintenance type.
func (v *Vehicle) LastServiceDateISO(t MaintenanceType) string {
	if t == OilChange {
		return v.LastOilChangeDateISO
	}
	return v.LastTireRotationDateISO
}

// IntervalMonths returns the time-based interval for a maintenance type.
func (v *Vehicle) IntervalMonths(t MaintenanceType) float64 {
	if t == OilChange {
		return v.OilIntervalMonths
	}
	return v.TireIntervalMonths
}

// HistoryEvent is one append-only log entry, newest first in State.History.
type HistoryEvent struct {
	ID        string `json:"id"`
	VehicleID string `json:"vehicleId"`
	Type      string `json:"type"`
	Mileage   int    `json:"mileage"`
	Details   string `json:"details"`
	DateISO   string `json:"dateISO"`
}

// CalendarEvent is a scheduled service reminder shown on the calendar tab.
type CalendarEvent struct {
	ID          string `json:"id"`
	VehicleID   string `json:"vehicleId"`
	DateISO     string `json:"dateISO"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	ServiceType string `json:"serviceType"`
	RemindLead  string `json:"remindLead"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// PWASettings are installable-app preferences. Pure UI state, persisted so
// every household device sees the same install behavior.
type PWASettings struct {
	LaunchTab     string `json:"launchTab"`
	ResumeLastTab bool   `json:"resumeLastTab"`
	OfflineReady  bool   `json:"offlineReady"`
	PushAlerts    bool   `json:"pushAlerts"`
	AppIcon       string `json:"appIcon"`
}

// Settings is the settings object of the snapshot. NotificationState maps
// "vehicleId:maintenanceType" to the last-fired stage key.
type Settings struct {
	ThemePreference   string            `json:"themePreference"`
	PWASettings       PWASettings       `json:"pwaSettings"`
	VAPIDPublicKey    string            `json:"vapidPublicKey"`
	NotificationState map[string]string `json:"autoNotificationState"`
	LastTab           string            `json:"lastTab"`
}

// State is the vehicle list plus the flat history log.
type State struct {
	Vehicles          []Vehicle      `json:"vehicles"`
	SelectedVehicleID string         `json:"selectedVehicleId"`
	History           []HistoryEvent `json:"history"`
}

// Snapshot is the single shared household document. Exactly one exists
// system-wide; there is no per-user partitioning.
type Snapshot struct {
	State          State                      `json:"state"`
	CalendarEvents map[string][]CalendarEvent `json:"calendarEvents"`
	Settings       Settings                   `json:"settings"`
}

// Find returns the vehicle with the given id, or nil.
func (s *State) Find(vehicleID string) *Vehicle {
	for i := range s.Vehicles {
		if s.Vehicles[i].ID == vehicleID {
			return &s.Vehicles[i]
		}
	}
	return nil
}

// StateKey builds the composite notification-state map key.
func StateKey(vehicleID string, t MaintenanceType) string {
	return vehicleID + ":" + string(t)
}

// ParseTime parses a persisted ISO-8601 timestamp. The bool is false for
// empty or malformed values; callers choose their own fallback.
func ParseTime(iso string) (time.Time, bool) {
	if iso == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, iso); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ValidDate reports whether iso parses as a timestamp.
func ValidDate(iso string) bool {
	_, ok := ParseTime(iso)
	return ok
}

// Stamp formats a timestamp the way every persisted field stores it,
// matching JavaScript's Date.toISOString (UTC, millisecond precision).
func Stamp(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
