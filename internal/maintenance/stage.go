package maintenance

import (
	"time"

	"github.com/albapepper/autotrack/internal/vehicle"
)

// Stage is the urgency bucket relative to the due date.
type Stage string

const (
	// StageNone means the service is not yet due. No advance "coming up"
	// notification exists: alerts fire only at or after the due instant.
	StageNone Stage = ""

	// StageServiceDue covers the first day at or past the due instant.
	StageServiceDue Stage = "service_due"

	// StageOverdue covers everything more than a day past due.
	StageOverdue Stage = "overdue"
)

// Classify maps signed remaining time to a notification stage.
func Classify(remaining time.Duration) Stage {
	switch {
	case remaining < -Day:
		return StageOverdue
	case remaining <= 0:
		return StageServiceDue
	default:
		return StageNone
	}
}

// StageKey builds the idempotence key for one due event: stage name plus the
// due instant normalized to ISO-8601 UTC. Equal inputs always produce equal
// keys; a rescheduled due date or a stage transition produces a new key and
// therefore a new notification.
func StageKey(stage Stage, dueDate time.Time) string {
	return string(stage) + ":" + vehicle.Stamp(dueDate)
}
