package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/albapepper/autotrack/internal/api/respond"
	"github.com/albapepper/autotrack/internal/push"
)

// GetPushConfig reports whether push delivery is fully configured and the
// public key the browser subscribe call needs. Also opportunistically makes
// sure the internal sweep loop is running, since any app open hits this.
func (h *Handler) GetPushConfig(w http.ResponseWriter, r *http.Request) {
	h.scheduler.EnsureStarted()
	respond.JSON(w, http.StatusOK, map[string]any{
		"publicKey": h.cfg.VAPIDPublicKey,
		"ready":     h.cfg.PushReady(),
	})
}

type subscribeRequest struct {
	Subscription *subscriptionBody `json:"subscription"`
	Endpoint     string            `json:"endpoint"`
}

type subscriptionBody struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// GetSubscriptionCount returns the number of registered push endpoints.
func (h *Handler) GetSubscriptionCount(w http.ResponseWriter, r *http.Request) {
	subscriptions, err := h.store.ListPushSubscriptions(r.Context())
	if err != nil {
		h.logger.Error("subscription list failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "SUBSCRIPTIONS_READ", "Unable to inspect push subscriptions")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"count": len(subscriptions)})
}

// PostSubscription registers (or refreshes) a push subscription.
func (h *Handler) PostSubscription(w http.ResponseWriter, r *http.Request) {
	var body subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Subscription == nil {
		respond.Error(w, http.StatusBadRequest, "BAD_SUBSCRIPTION", "Invalid push subscription payload")
		return
	}

	sub := push.Subscription{
		Endpoint: body.Subscription.Endpoint,
		P256dh:   body.Subscription.Keys.P256dh,
		Auth:     body.Subscription.Keys.Auth,
	}
	saved, err := h.store.UpsertPushSubscription(r.Context(), sub, r.UserAgent())
	if err != nil {
		h.logger.Error("subscription upsert failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "SUBSCRIPTIONS_WRITE", "Unable to save push subscription")
		return
	}
	if !saved {
		respond.Error(w, http.StatusBadRequest, "BAD_SUBSCRIPTION", "Invalid push subscription payload")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DeleteSubscription removes a subscription by endpoint. The endpoint may
// arrive top-level or nested under "subscription".
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	var body subscribeRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	endpoint := strings.TrimSpace(body.Endpoint)
	if endpoint == "" && body.Subscription != nil {
		endpoint = strings.TrimSpace(body.Subscription.Endpoint)
	}
	if endpoint == "" {
		respond.Error(w, http.StatusBadRequest, "MISSING_ENDPOINT", "Missing subscription endpoint")
		return
	}

	if _, err := h.store.RemovePushSubscription(r.Context(), endpoint); err != nil {
		h.logger.Error("subscription remove failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "SUBSCRIPTIONS_WRITE", "Unable to remove push subscription")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
