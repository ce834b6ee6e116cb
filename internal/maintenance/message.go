package maintenance

import (
	"fmt"
	"math"
	"time"

	"github.com/albapepper/autotrack/internal/vehicle"
)

// ServiceLabel returns the display name for a maintenance type.
func ServiceLabel(t vehicle.MaintenanceType) string {
	if t == vehicle.OilChange {
		return "Oil Change"
	}
	return "Tire Rotation"
}

// RemainingLabel renders signed remaining time the way notifications word it.
func RemainingLabel(remaining time.Duration) string {
	if remaining >= 0 {
		if remaining < Day {
			return "Due today"
		}
		days := int(math.Ceil(float64(remaining) / float64(Day)))
		if days < 30 {
			return fmt.Sprintf("%d %s", days, plural(days, "day", "days"))
		}
		months := days / 30
		dayRemainder := days % 30
		return fmt.Sprintf("%dm %dd", months, dayRemainder)
	}

	if remaining > -Day {
		return "Due today"
	}
	overdueDays := int(math.Floor(float64(-remaining) / float64(Day)))
	if overdueDays < 1 {
		overdueDays = 1
	}
	return fmt.Sprintf("Overdue by %d %s", overdueDays, plural(overdueDays, "day", "days"))
}

// BuildNotificationBody produces the human-readable push sentence for a
// vehicle's due event.
func BuildNotificationBody(vehicleName string, t vehicle.MaintenanceType, stage Stage, remaining time.Duration, dueDate time.Time) string {
	label := ServiceLabel(t)
	switch stage {
	case StageServiceDue:
		return fmt.Sprintf("%s is due now for %s.", label, vehicleName)
	case StageOverdue:
		return fmt.Sprintf("%s is overdue for %s: %s.", label, vehicleName, RemainingLabel(remaining))
	default:
		return fmt.Sprintf("%s due soon for %s: %s. Due %s.",
			label, vehicleName, RemainingLabel(remaining), dueDate.Format("Jan 2, 2006 3:04 PM"))
	}
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
