package vehicle

import "time"

// Default service intervals applied when a persisted value is missing or
// malformed.
const (
	DefaultOilIntervalMiles   = 5000
	DefaultTireIntervalMiles  = 6000
	DefaultOilIntervalMonths  = 12
	DefaultTireIntervalMonths = 6

	minIntervalMonths = 0.25
)

const (
	defaultAppIcon  = "/icons/white-icon-apple-touch.png"
	defaultTheme    = "light"
	defaultTab      = "dashboard"
	defaultLocation = "No location"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

// Templates is the fixed household vehicle list. The snapshot is always
// rebuilt against these: persisted per-vehicle state is merged onto its
// template by id, so template edits (new image, corrected interval) propagate
// without a migration.
var Templates = []Vehicle{
	{
		ID:                 "2023-acura-rdx-a-spec",
		Name:               "2023 Acura RDX (A-spec)",
		Image:              "/vehicles/Tint-2023-Acura-RDX.png",
		OilInterval:        9000,
		TireInterval:       5000,
		OilIntervalMonths:  12,
		TireIntervalMonths: 5,
	},
	{
		ID:                 "2021-ram-1500-rebel",
		Name:               "2021 Ram 1500 Rebel",
		Image:              "/vehicles/Tint-2021-Ram-Rebel.png",
		ImageScale:         floatPtr(1.12),
		ImageShiftX:        strPtr("-8px"),
		OilInterval:        9000,
		TireInterval:       4000,
		OilIntervalMonths:  12,
		TireIntervalMonths: 4.5,
	},
	{
		ID:                 "2020-honda-accord-sedan",
		Name:               "2020 Honda Accord (EX-L)",
		Image:              "/vehicles/Tint-2020-Honda-Accord.png",
		OilInterval:        9000,
		TireInterval:       6000,
		OilIntervalMonths:  12,
		TireIntervalMonths: 6,
	},
	{
		ID:                 "2018-honda-accord-ex-l",
		Name:               "2018 Honda Accord (EX-L)",
		Image:              "/vehicles/Tint-2018-Honda-Accord.png",
		OilInterval:        9000,
		TireInterval:       6000,
		OilIntervalMonths:  12,
		TireIntervalMonths: 6,
	},
	{
		ID:                 "2017-honda-accord-special-edition",
		Name:               "2017 Honda Accord (SE)",
		Image:              "/vehicles/Tint-2017-Honda-Accord.png",
		OilInterval:        9000,
		TireInterval:       6000,
		OilIntervalMonths:  12,
		TireIntervalMonths: 6,
	},
}

// Interval values shipped in earlier template revisions. A persisted value
// matching one of these is treated as "never customized" and upgraded to the
// current template value; anything else is an owner customization and wins.
var legacyOilIntervals = map[string]int{
	"2023-acura-rdx-a-spec":             7500,
	"2021-ram-1500-rebel":               8000,
	"2020-honda-accord-sedan":           7500,
	"2018-honda-accord-ex-l":            7500,
	"2017-honda-accord-special-edition": 7500,
}

var legacyTireIntervals = map[string][]int{
	"2023-acura-rdx-a-spec":             {7500, 6000},
	"2021-ram-1500-rebel":               {8000, 3500},
	"2020-honda-accord-sedan":           {7500},
	"2018-honda-accord-ex-l":            {7500},
	"2017-honda-accord-special-edition": {7500},
}

// MergeTemplate overlays persisted per-vehicle state onto its template.
// It never fails: malformed persisted values fall back to template defaults
// so one bad row cannot take down snapshot loading.
func MergeTemplate(template Vehicle, existing *Vehicle, now time.Time) Vehicle {
	nowISO := Stamp(now)
	merged := template

	templateOil := maxInt(1, orInt(template.OilInterval, DefaultOilIntervalMiles))
	templateTire := maxInt(1, orInt(template.TireInterval, DefaultTireIntervalMiles))
	merged.OilIntervalMonths = maxFloat(minIntervalMonths, orFloat(template.OilIntervalMonths, DefaultOilIntervalMonths))
	merged.TireIntervalMonths = maxFloat(minIntervalMonths, orFloat(template.TireIntervalMonths, DefaultTireIntervalMonths))
	merged.OilInterval = templateOil
	merged.TireInterval = templateTire

	if existing == nil {
		merged.LastOilChangeDateISO = nowISO
		merged.LastTireRotationDateISO = nowISO
		merged.CreatedAt = nowISO
		merged.UpdatedAt = nowISO
		return merged
	}

	merged.Odometer = maxInt(0, existing.Odometer)

	if existing.OilInterval > 0 {
		switch {
		case existing.OilInterval == DefaultOilIntervalMiles && templateOil != DefaultOilIntervalMiles:
			merged.OilInterval = templateOil
		case existing.OilInterval == legacyOilIntervals[template.ID] && templateOil != legacyOilIntervals[template.ID]:
			merged.OilInterval = templateOil
		default:
			merged.OilInterval = existing.OilInterval
		}
	}
	if existing.TireInterval > 0 {
		switch {
		case existing.TireInterval == DefaultTireIntervalMiles && templateTire != DefaultTireIntervalMiles:
			merged.TireInterval = templateTire
		case containsInt(legacyTireIntervals[template.ID], existing.TireInterval) && templateTire != existing.TireInterval:
			merged.TireInterval = templateTire
		default:
			merged.TireInterval = existing.TireInterval
		}
	}
	if existing.OilIntervalMonths > 0 {
		merged.OilIntervalMonths = existing.OilIntervalMonths
	}
	if existing.TireIntervalMonths > 0 {
		merged.TireIntervalMonths = existing.TireIntervalMonths
	}

	merged.LastOilChangeOdometer = maxInt(0, orInt(existing.LastOilChangeOdometer, merged.Odometer))
	merged.LastTireRotationOdometer = maxInt(0, orInt(existing.LastTireRotationOdometer, merged.Odometer))

	merged.LastOilChangeDateISO = nowISO
	if ValidDate(existing.LastOilChangeDateISO) {
		merged.LastOilChangeDateISO = existing.LastOilChangeDateISO
	}
	merged.LastTireRotationDateISO = nowISO
	if ValidDate(existing.LastTireRotationDateISO) {
		merged.LastTireRotationDateISO = existing.LastTireRotationDateISO
	}

	merged.ServiceOverrides = normalizeOverrides(existing.ServiceOverrides)

	merged.CreatedAt = nowISO
	if existing.CreatedAt != "" {
		merged.CreatedAt = existing.CreatedAt
	}
	merged.UpdatedAt = nowISO
	if existing.UpdatedAt != "" {
		merged.UpdatedAt = existing.UpdatedAt
	}
	return merged
}

func normalizeOverrides(overrides Overrides) Overrides {
	next := Overrides{}
	if overrides.OilChange != nil && ValidDate(*overrides.OilChange) {
		next.OilChange = overrides.OilChange
	}
	if overrides.TireRotation != nil && ValidDate(*overrides.TireRotation) {
		next.TireRotation = overrides.TireRotation
	}
	return next
}

// DefaultPWASettings returns the install preferences for a fresh household.
func DefaultPWASettings() PWASettings {
	return PWASettings{
		LaunchTab:     defaultTab,
		ResumeLastTab: true,
		OfflineReady:  true,
		PushAlerts:    false,
		AppIcon:       defaultAppIcon,
	}
}

// DefaultSnapshot builds the initial household document from the templates.
func DefaultSnapshot(now time.Time) *Snapshot {
	vehicles := make([]Vehicle, 0, len(Templates))
	for _, template := range Templates {
		vehicles = append(vehicles, MergeTemplate(template, nil, now))
	}
	selected := ""
	if len(vehicles) > 0 {
		selected = vehicles[0].ID
	}
	return &Snapshot{
		State: State{
			Vehicles:          vehicles,
			SelectedVehicleID: selected,
			History:           []HistoryEvent{},
		},
		CalendarEvents: map[string][]CalendarEvent{},
		Settings: Settings{
			ThemePreference:   defaultTheme,
			PWASettings:       DefaultPWASettings(),
			NotificationState: map[string]string{},
			LastTab:           defaultTab,
		},
	}
}

// NormalizeSnapshot coerces an untrusted snapshot (client PUT, old DB rows)
// into a well-formed one: vehicles rebuilt against the templates, settings
// defaulted, notification-state entries restricted to known types.
func NormalizeSnapshot(input *Snapshot, now time.Time) *Snapshot {
	if input == nil {
		return DefaultSnapshot(now)
	}

	byID := make(map[string]*Vehicle, len(input.State.Vehicles))
	for i := range input.State.Vehicles {
		byID[input.State.Vehicles[i].ID] = &input.State.Vehicles[i]
	}

	vehicles := make([]Vehicle, 0, len(Templates))
	for _, template := range Templates {
		vehicles = append(vehicles, MergeTemplate(template, byID[template.ID], now))
	}

	selected := input.State.SelectedVehicleID
	found := false
	for _, v := range vehicles {
		if v.ID == selected {
			found = true
			break
		}
	}
	if !found {
		selected = ""
		if len(vehicles) > 0 {
			selected = vehicles[0].ID
		}
	}

	history := input.State.History
	if history == nil {
		history = []HistoryEvent{}
	}

	calendarEvents := input.CalendarEvents
	if calendarEvents == nil {
		calendarEvents = map[string][]CalendarEvent{}
	}

	settings := input.Settings
	if settings.ThemePreference != "dark" && settings.ThemePreference != "system" {
		settings.ThemePreference = defaultTheme
	}
	settings.PWASettings = normalizePWASettings(settings.PWASettings)
	if settings.LastTab == "" {
		settings.LastTab = defaultTab
	}

	notificationState := map[string]string{}
	for key, stageKey := range settings.NotificationState {
		if key == "" || stageKey == "" {
			continue
		}
		notificationState[key] = stageKey
	}
	settings.NotificationState = notificationState

	return &Snapshot{
		State: State{
			Vehicles:          vehicles,
			SelectedVehicleID: selected,
			History:           history,
		},
		CalendarEvents: calendarEvents,
		Settings:       settings,
	}
}

func normalizePWASettings(p PWASettings) PWASettings {
	defaults := DefaultPWASettings()
	if p.LaunchTab == "" {
		p.LaunchTab = defaults.LaunchTab
	}
	if p.AppIcon == "" {
		p.AppIcon = defaults.AppIcon
	}
	return p
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orFloat(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func containsInt(values []int, v int) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
