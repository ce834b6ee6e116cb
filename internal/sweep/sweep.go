// Package sweep evaluates every vehicle's maintenance schedule against the
// stored notification stages and dispatches web push alerts for newly-due
// events. One Sweeper serves both callers: the in-process interval scheduler
// and the on-demand HTTP/CLI trigger.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albapepper/autotrack/internal/maintenance"
	"github.com/albapepper/autotrack/internal/push"
	"github.com/albapepper/autotrack/internal/store"
	"github.com/albapepper/autotrack/internal/vehicle"
)

// Storage is the persistence surface the sweep needs.
type Storage interface {
	Snapshot(ctx context.Context) (*vehicle.Snapshot, bool, error)
	ListPushSubscriptions(ctx context.Context) ([]store.SubscriptionRecord, error)
	NotificationStateMap(ctx context.Context) (map[string]string, error)
	SetNotificationStage(ctx context.Context, vehicleID string, t vehicle.MaintenanceType, stageKey string) (bool, error)
	ClearNotificationStage(ctx context.Context, vehicleID string, t vehicle.MaintenanceType) (bool, error)
	MarkPushDeliverySuccess(ctx context.Context, endpoint string) error
	MarkPushDeliveryFailure(ctx context.Context, endpoint string) error
	RemovePushSubscription(ctx context.Context, endpoint string) (bool, error)
}

// Deliverer is the push transport surface. *push.Sender satisfies it,
// including as a typed nil when delivery keys are not configured.
type Deliverer interface {
	Ready() bool
	Send(ctx context.Context, sub push.Subscription, payload []byte) (int, error)
}

// Options controls one sweep pass. A zero Now means the current time. DryRun
// simulates sends (counts as if every subscription succeeded) with no state
// mutation or delivery.
type Options struct {
	Now    time.Time
	DryRun bool
}

// Report summarizes one sweep pass. Field names are the wire shape returned
// by the trigger endpoint.
type Report struct {
	OK            bool `json:"ok"`
	Ready         bool `json:"ready"`
	Subscriptions int  `json:"subscriptions"`
	Checks        int  `json:"checks"`
	SentCount     int  `json:"sentCount"`
	FailedCount   int  `json:"failedCount"`
	RemovedCount  int  `json:"removedCount"`
	StageUpdates  int  `json:"stageUpdates"`
	ClearedStages int  `json:"clearedStages"`
	DryRun        bool `json:"dryRun"`
}

// Sweeper runs sweep passes. Safe for overlapping invocations: all writes are
// idempotent upserts keyed by stable identifiers, so a rare race between the
// timer and an external trigger at worst duplicates one notification.
type Sweeper struct {
	storage Storage
	sender  Deliverer
	logger  *slog.Logger
}

// NewSweeper builds a sweeper around explicit dependencies.
func NewSweeper(storage Storage, sender Deliverer, logger *slog.Logger) *Sweeper {
	return &Sweeper{storage: storage, sender: sender, logger: logger}
}

// Run performs one full evaluation pass over all vehicles and maintenance
// types. Only the initial loads can fail; per-vehicle and per-delivery
// problems are recorded in the report and never abort the pass.
func (s *Sweeper) Run(ctx context.Context, opts Options) (Report, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	ready := s.sender != nil && s.sender.Ready()
	report := Report{OK: true, Ready: ready, DryRun: opts.DryRun}

	snap, _, err := s.storage.Snapshot(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("loading snapshot: %w", err)
	}
	subscriptions, err := s.storage.ListPushSubscriptions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing subscriptions: %w", err)
	}
	stateMap, err := s.storage.NotificationStateMap(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("loading notification state: %w", err)
	}
	report.Subscriptions = len(subscriptions)

	appIcon := snap.Settings.PWASettings.AppIcon
	if appIcon == "" {
		appIcon = push.DefaultIcon
	}

	for i := range snap.State.Vehicles {
		v := &snap.State.Vehicles[i]
		stats := maintenance.ComputeStats(v, now)

		for _, t := range vehicle.Types {
			report.Checks++
			item := stats.ForType(t)
			mapKey := vehicle.StateKey(v.ID, t)
			stage := maintenance.Classify(item.Remaining)

			if stage == maintenance.StageNone {
				// The only path that removes state without a send: the
				// service was completed or rescheduled out of the window.
				if _, tracked := stateMap[mapKey]; !tracked {
					continue
				}
				if !opts.DryRun {
					if _, err := s.storage.ClearNotificationStage(ctx, v.ID, t); err != nil {
						s.logger.Warn("clear stage failed", "vehicle", v.ID, "type", t, "error", err)
					}
				}
				delete(stateMap, mapKey)
				report.ClearedStages++
				continue
			}

			stageKey := maintenance.StageKey(stage, item.DueDate)
			if stateMap[mapKey] == stageKey {
				// Already notified for this exact due event.
				continue
			}

			if !ready || len(subscriptions) == 0 {
				continue
			}

			payload := push.Payload{
				Title: push.HiddenTitle,
				Body:  maintenance.BuildNotificationBody(v.Name, t, stage, item.Remaining, item.DueDate),
				Icon:  appIcon,
				URL:   "/",
			}

			if opts.DryRun {
				report.SentCount += len(subscriptions)
				continue
			}

			sent, failed, removed := s.deliver(ctx, payload.Marshal(), subscriptions)
			report.SentCount += sent
			report.FailedCount += failed
			report.RemovedCount += removed

			// Commit the stage key only after at least one confirmed send;
			// otherwise the untouched key makes the next sweep retry.
			if sent > 0 {
				if _, err := s.storage.SetNotificationStage(ctx, v.ID, t, stageKey); err != nil {
					s.logger.Warn("set stage failed", "vehicle", v.ID, "type", t, "error", err)
				}
				stateMap[mapKey] = stageKey
				report.StageUpdates++
			}
		}
	}

	return report, nil
}

// deliver fans one payload out to every subscription concurrently; the sends
// are independent and one failure must not affect another's accounting.
func (s *Sweeper) deliver(ctx context.Context, payload []byte, subscriptions []store.SubscriptionRecord) (sent, failed, removed int) {
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, record := range subscriptions {
		wg.Add(1)
		go func(record store.SubscriptionRecord) {
			defer wg.Done()
			endpoint := record.Endpoint()

			status, err := s.sender.Send(ctx, record.Subscription, payload)
			if err == nil && status >= 200 && status < 300 {
				if markErr := s.storage.MarkPushDeliverySuccess(ctx, endpoint); markErr != nil {
					s.logger.Warn("mark delivery success failed", "endpoint", endpoint, "error", markErr)
				}
				mu.Lock()
				sent++
				mu.Unlock()
				return
			}

			if err != nil {
				s.logger.Warn("push delivery failed", "endpoint", endpoint, "error", err)
			} else {
				s.logger.Warn("push delivery rejected", "endpoint", endpoint, "status", status)
			}
			if markErr := s.storage.MarkPushDeliveryFailure(ctx, endpoint); markErr != nil {
				s.logger.Warn("mark delivery failure failed", "endpoint", endpoint, "error", markErr)
			}

			gone := err == nil && push.IsGone(status)
			if gone {
				if _, removeErr := s.storage.RemovePushSubscription(ctx, endpoint); removeErr != nil {
					s.logger.Warn("remove subscription failed", "endpoint", endpoint, "error", removeErr)
					gone = false
				}
			}

			mu.Lock()
			failed++
			if gone {
				removed++
			}
			mu.Unlock()
		}(record)
	}

	wg.Wait()
	return sent, failed, removed
}
