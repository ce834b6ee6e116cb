package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/albapepper/autotrack/internal/push"
)

// SubscriptionRecord is one registered push endpoint with delivery health.
type SubscriptionRecord struct {
	Subscription push.Subscription `json:"subscription"`
	UserAgent    string            `json:"userAgent"`
	UpdatedAt    string            `json:"updatedAt"`
	FailureCount int               `json:"failureCount"`
}

// Endpoint returns the unique key of the record.
func (r SubscriptionRecord) Endpoint() string {
	return r.Subscription.Endpoint
}

// UpsertPushSubscription registers a subscription, overwriting any existing
// row for the same endpoint. Invalid shape (missing endpoint or either crypto
// key) returns false with no change.
func (s *Store) UpsertPushSubscription(ctx context.Context, sub push.Subscription, userAgent string) (bool, error) {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	sub.P256dh = strings.TrimSpace(sub.P256dh)
	sub.Auth = strings.TrimSpace(sub.Auth)
	if !sub.Valid() {
		return false, nil
	}

	var agent any
	if trimmed := strings.TrimSpace(userAgent); trimmed != "" {
		agent = trimmed
	}
	timestamp := s.stamp()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (
			endpoint, p256dh, auth, user_agent, created_at, updated_at, failure_count
		) VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			user_agent = excluded.user_agent,
			updated_at = excluded.updated_at`,
		sub.Endpoint, sub.P256dh, sub.Auth, agent, timestamp, timestamp)
	if err != nil {
		return false, fmt.Errorf("upserting push subscription: %w", err)
	}
	return true, nil
}

// RemovePushSubscription deletes a subscription by endpoint. Removing an
// unknown endpoint is not an error.
func (s *Store) RemovePushSubscription(ctx context.Context, endpoint string) (bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return false, nil
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	if err != nil {
		return false, fmt.Errorf("removing push subscription: %w", err)
	}
	return true, nil
}

// ListPushSubscriptions returns all registered endpoints, most recently
// updated first. The sweep fans out sends over this list.
func (s *Store) ListPushSubscriptions(ctx context.Context) ([]SubscriptionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint, p256dh, auth, user_agent, updated_at, failure_count
		FROM push_subscriptions
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying push subscriptions: %w", err)
	}
	defer rows.Close()

	var records []SubscriptionRecord
	for rows.Next() {
		var r SubscriptionRecord
		var agent sql.NullString
		if err := rows.Scan(&r.Subscription.Endpoint, &r.Subscription.P256dh,
			&r.Subscription.Auth, &agent, &r.UpdatedAt, &r.FailureCount); err != nil {
			return nil, fmt.Errorf("scanning push subscription: %w", err)
		}
		r.UserAgent = agent.String
		if r.Subscription.Valid() {
			records = append(records, r)
		}
	}
	return records, rows.Err()
}

// MarkPushDeliverySuccess records a successful delivery and resets the
// consecutive-failure counter.
func (s *Store) MarkPushDeliverySuccess(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET last_success_at = ?, failure_count = 0
		WHERE endpoint = ?`, s.stamp(), strings.TrimSpace(endpoint))
	if err != nil {
		return fmt.Errorf("marking delivery success: %w", err)
	}
	return nil
}

// MarkPushDeliveryFailure records a failed delivery. Bookkeeping only:
// failures never remove the row. Removal is driven by the transport's
// explicit gone signal, so transient outages don't evict subscriptions.
func (s *Store) MarkPushDeliveryFailure(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET last_failure_at = ?, failure_count = failure_count + 1
		WHERE endpoint = ?`, s.stamp(), strings.TrimSpace(endpoint))
	if err != nil {
		return fmt.Errorf("marking delivery failure: %w", err)
	}
	return nil
}
