// Package maintenance computes service due dates and notification stages.
//
// Everything here is pure: (vehicle, now) in, stats out. These functions run
// inside the background sweep against persisted data of unknown quality, so
// they never fail; malformed fields degrade to defaults instead.
package maintenance

import (
	"math"
	"time"

	"github.com/albapepper/autotrack/internal/vehicle"
)

// Day is the overdue threshold: a service stays in the "due" stage for one
// day past its due instant before flipping to "overdue".
const Day = 24 * time.Hour

// TypeStats is the derived schedule for one maintenance type. Remaining is
// signed; negative means overdue. Window is always at least 1ms so progress
// ratios never divide by zero.
type TypeStats struct {
	Remaining time.Duration
	Window    time.Duration
	Progress  float64
	DueDate   time.Time
	Manual    bool
}

// DueDateISO returns the due date in the persisted ISO form.
func (s TypeStats) DueDateISO() string {
	return vehicle.Stamp(s.DueDate)
}

// Stats is the full derived schedule for a vehicle, one entry per type.
type Stats struct {
	Oil  TypeStats
	Tire TypeStats
}

// ForType returns the stats entry for a maintenance type.
func (s Stats) ForType(t vehicle.MaintenanceType) TypeStats {
	if t == vehicle.OilChange {
		return s.Oil
	}
	return s.Tire
}

// AddFractionalMonths adds a fractional month count to a start instant:
// whole months via calendar arithmetic, then round(frac*30) days. The 30-day
// fractional-month convention is an approximation, kept deliberately for
// output compatibility with existing persisted schedules.
func AddFractionalMonths(start time.Time, months float64) time.Time {
	if months <= 0 {
		return start
	}
	whole := int(math.Floor(months))
	frac := months - float64(whole)

	due := start
	if whole > 0 {
		due = due.AddDate(0, whole, 0)
	}
	if frac > 0 {
		extraDays := int(math.Round(frac * 30))
		due = due.AddDate(0, 0, extraDays)
	}
	return due
}

// ComputeStats derives the maintenance schedule for a vehicle at an instant.
// Pure and total: malformed persisted dates fall back to now, non-positive
// intervals to the defaults.
func ComputeStats(v *vehicle.Vehicle, now time.Time) Stats {
	return Stats{
		Oil:  computeTypeStats(v, vehicle.OilChange, now),
		Tire: computeTypeStats(v, vehicle.TireRotation, now),
	}
}

func computeTypeStats(v *vehicle.Vehicle, t vehicle.MaintenanceType, now time.Time) TypeStats {
	months := v.IntervalMonths(t)
	if months <= 0 {
		if t == vehicle.OilChange {
			months = vehicle.DefaultOilIntervalMonths
		} else {
			months = vehicle.DefaultTireIntervalMonths
		}
	}

	// A malformed last-service date restarts the clock at now, putting the
	// due date a full interval out rather than firing an immediate alert.
	// Snapshot normalization coerces bad dates before they persist, so this
	// only covers data that bypassed it.
	start, ok := vehicle.ParseTime(v.LastServiceDateISO(t))
	if !ok {
		start = now
	}

	due := AddFractionalMonths(start, months)

	// A manual override replaces the computed due date, but only when it is
	// strictly after the last completed service.
	manual := false
	if override := v.ServiceOverrides.Get(t); override != nil {
		if overrideDue, ok := vehicle.ParseTime(*override); ok && overrideDue.After(start) {
			due = overrideDue
			manual = true
		}
	}

	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	window := due.Sub(start)
	if window < time.Millisecond {
		window = time.Millisecond
	}

	progress := float64(elapsed) / float64(window)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	return TypeStats{
		Remaining: due.Sub(now),
		Window:    window,
		Progress:  progress,
		DueDate:   due,
		Manual:    manual,
	}
}
