package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/autotrack/internal/api/handler"
	"github.com/albapepper/autotrack/internal/config"
	"github.com/albapepper/autotrack/internal/push"
	"github.com/albapepper/autotrack/internal/store"
	"github.com/albapepper/autotrack/internal/sweep"
	"github.com/albapepper/autotrack/internal/vehicle"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		CORSAllowOrigins: []string{"*"},
	}
}

// newTestServer wires a real store and router against a throwaway database.
// The scheduler interval is zero so no background loop ever starts.
func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.New(filepath.Join(t.TempDir(), "autotrack.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var sender *push.Sender
	sweeper := sweep.NewSweeper(st, sender, logger)
	scheduler := sweep.NewScheduler(context.Background(), sweeper, 0, 0, false, logger)

	srv := httptest.NewServer(NewRouter(st, cfg, sweeper, scheduler, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/health/db", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]string
	decodeBody(t, resp, &status)
	assert.Equal(t, "ok", status["status"])
}

func TestRootEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := doJSON(t, http.MethodGet, srv.URL+"/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "autotrack", body["service"])
	assert.Equal(t, "test", body["environment"])
}

func TestStorageRoundtrip(t *testing.T) {
	srv := newTestServer(t, testConfig())

	// First read: template defaults, flagged empty.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/storage", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Snapshot *vehicle.Snapshot `json:"snapshot"`
		Meta     *struct {
			IsEmpty bool `json:"isEmpty"`
		} `json:"meta"`
	}
	decodeBody(t, resp, &envelope)
	require.NotNil(t, envelope.Meta)
	assert.True(t, envelope.Meta.IsEmpty)
	require.NotNil(t, envelope.Snapshot)
	require.Len(t, envelope.Snapshot.State.Vehicles, len(vehicle.Templates))

	// Persist a change and read it back.
	envelope.Snapshot.State.Vehicles[0].Odometer = 44000
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/storage",
		map[string]any{"snapshot": envelope.Snapshot})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/storage", nil)
	decodeBody(t, resp, &envelope)
	assert.False(t, envelope.Meta.IsEmpty)
	assert.Equal(t, 44000, envelope.Snapshot.State.Vehicles[0].Odometer)
}

func TestPutStorage_BadJSON(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/storage",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPushConfig_NotConfigured(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/push/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		PublicKey string `json:"publicKey"`
		Ready     bool   `json:"ready"`
	}
	decodeBody(t, resp, &body)
	assert.Empty(t, body.PublicKey)
	assert.False(t, body.Ready)
}

func TestPushConfig_Configured(t *testing.T) {
	cfg := testConfig()
	cfg.VAPIDPublicKey = "pub-key"
	cfg.VAPIDPrivateKey = "priv-key"
	srv := newTestServer(t, cfg)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/push/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		PublicKey string `json:"publicKey"`
		Ready     bool   `json:"ready"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "pub-key", body.PublicKey)
	assert.True(t, body.Ready)
}

func TestPushEndpoints_InternalSweepDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.New(filepath.Join(t.TempDir(), "autotrack.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := testConfig()
	cfg.DisableInternalSweep = true

	var sender *push.Sender
	sweeper := sweep.NewSweeper(st, sender, logger)
	scheduler := sweep.NewScheduler(context.Background(), sweeper,
		10*time.Millisecond, time.Millisecond, cfg.DisableInternalSweep, logger)

	srv := httptest.NewServer(NewRouter(st, cfg, sweeper, scheduler, logger))
	t.Cleanup(srv.Close)

	// Both endpoints that request a scheduler start still work.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/push/config", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/push/sweep", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Neither request may have latched the loop on: external-cron mode keeps
	// the internal schedule off for the life of the process.
	assert.False(t, scheduler.EnsureStarted())
}

func TestSubscriptionLifecycle(t *testing.T) {
	srv := newTestServer(t, testConfig())

	subscription := map[string]any{
		"endpoint": "https://push.example/endpoint-1",
		"keys":     map[string]string{"p256dh": "p256", "auth": "auth"},
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/push/subscriptions",
		map[string]any{"subscription": subscription})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/push/subscriptions", nil)
	var count map[string]int
	decodeBody(t, resp, &count)
	assert.Equal(t, 1, count["count"])

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/push/subscriptions",
		map[string]any{"endpoint": "https://push.example/endpoint-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/push/subscriptions", nil)
	decodeBody(t, resp, &count)
	assert.Equal(t, 0, count["count"])
}

func TestPostSubscription_Invalid(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		name string
		body any
	}{
		{"no subscription object", map[string]any{}},
		{"missing keys", map[string]any{"subscription": map[string]any{"endpoint": "https://push.example/x"}}},
		{"missing endpoint", map[string]any{"subscription": map[string]any{
			"keys": map[string]string{"p256dh": "p", "auth": "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/push/subscriptions", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestDeleteSubscription_MissingEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/push/subscriptions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSweepTrigger_NoSecretConfigured(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/push/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report sweep.Report
	decodeBody(t, resp, &report)
	assert.True(t, report.OK)
	assert.False(t, report.Ready)
	assert.Equal(t, 2*len(vehicle.Templates), report.Checks)
}

func TestSweepTrigger_SecretEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.CronSecret = "s3cret"
	srv := newTestServer(t, cfg)

	// No credentials.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/push/sweep", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong header.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/push/sweep", nil)
	req.Header.Set(handler.CronSecretHeader, "wrong")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct header.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/push/sweep", nil)
	req.Header.Set(handler.CronSecretHeader, "s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Bearer token works too.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/v1/push/sweep", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSweepTrigger_DryRun(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/push/sweep?dryRun=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report sweep.Report
	decodeBody(t, resp, &report)
	assert.True(t, report.DryRun)
}

func TestVehicleActions(t *testing.T) {
	srv := newTestServer(t, testConfig())
	id := vehicle.Templates[0].ID

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/"+id+"/odometer",
		map[string]int{"odometer": 15000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Snapshot *vehicle.Snapshot `json:"snapshot"`
	}
	decodeBody(t, resp, &envelope)
	assert.Equal(t, 15000, envelope.Snapshot.State.Find(id).Odometer)

	// Backwards odometer rejected.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/"+id+"/odometer",
		map[string]int{"odometer": 14000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown vehicle is a 404.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/unknown/odometer",
		map[string]int{"odometer": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Log a service.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/"+id+"/maintenance",
		map[string]string{"maintenanceType": "oil_change"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &envelope)
	assert.Equal(t, 15000, envelope.Snapshot.State.Find(id).LastOilChangeOdometer)

	// Unknown maintenance type rejected.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/"+id+"/maintenance",
		map[string]string{"maintenanceType": "flux_capacitor"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Adjust mileage intervals. Values deliberately avoid the legacy-template
	// numbers, which the merge would treat as never-customized and upgrade.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/"+id+"/intervals",
		map[string]int{"oilInterval": 8500, "tireInterval": 5500})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &envelope)
	assert.Equal(t, 8500, envelope.Snapshot.State.Find(id).OilInterval)
	assert.Equal(t, 5500, envelope.Snapshot.State.Find(id).TireInterval)
}

func TestReminderEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())
	id := vehicle.Templates[0].ID

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/"+id+"/reminder",
		map[string]string{"maintenanceType": "tire_rotation", "dateISO": "2026-10-01T09:00:00.000Z"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Snapshot *vehicle.Snapshot `json:"snapshot"`
	}
	decodeBody(t, resp, &envelope)
	override := envelope.Snapshot.State.Find(id).ServiceOverrides.TireRotation
	require.NotNil(t, override)
	assert.Equal(t, "2026-10-01T09:00:00.000Z", *override)

	// Invalid date rejected.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/vehicles/"+id+"/reminder",
		map[string]string{"maintenanceType": "tire_rotation", "dateISO": "someday"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/vehicles/"+id+"/reminder/tire_rotation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &envelope)
	assert.Nil(t, envelope.Snapshot.State.Find(id).ServiceOverrides.TireRotation)
}

func TestVehicleStats(t *testing.T) {
	srv := newTestServer(t, testConfig())
	id := vehicle.Templates[0].ID

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/vehicles/"+id+"/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		VehicleID string `json:"vehicleId"`
		Oil       struct {
			RemainingMs int64   `json:"remainingMs"`
			WindowMs    int64   `json:"windowMs"`
			Progress    float64 `json:"progress"`
			DueDateISO  string  `json:"dueDateISO"`
			Manual      bool    `json:"manual"`
		} `json:"oilChange"`
	}
	decodeBody(t, resp, &stats)
	assert.Equal(t, id, stats.VehicleID)
	assert.Positive(t, stats.Oil.RemainingMs, "fresh defaults put the due date a full interval out")
	assert.Positive(t, stats.Oil.WindowMs)
	assert.False(t, stats.Oil.Manual)
	assert.True(t, vehicle.ValidDate(stats.Oil.DueDateISO))

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/vehicles/unknown/stats", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
