package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorpool/motorpool/internal/adapter/memory"
	"github.com/motorpool/motorpool/internal/adapter/telegram"
	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/gate"
	"github.com/motorpool/motorpool/internal/retry"
	"github.com/motorpool/motorpool/internal/service/auth"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/internal/service/ratelimit"
	"github.com/motorpool/motorpool/internal/service/report"
	"github.com/motorpool/motorpool/internal/usecase"
)

const (
	adminChat     = "admin-chat"
	webhookSecret = "hook-secret"
)

type serverFixture struct {
	server   *httptest.Server
	store    *memory.Store
	notifier *memory.Notifier
	token    string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	store := memory.New()
	notifier := memory.NewNotifier()
	cfg := retry.Config{MaxAttempts: 3, Base: time.Millisecond, Multiplier: 2}

	fleet := usecase.NewFleetUseCase(
		store.Ledger(), store.Vehicles(), notifier,
		gate.New(), cfg, logger.Noop(), time.UTC, adminChat,
	)
	access := usecase.NewAccessUseCase(
		store.Requests(), store.Actors(), store.Settings(), notifier,
		gate.New(), cfg, logger.Noop(), adminChat,
	)
	commands := telegram.NewHandler(fleet, access, notifier, logger.Noop(), time.UTC)

	hash, err := auth.HashPassword("hunter2-but-longer")
	require.NoError(t, err)
	authService := auth.NewService(auth.Config{
		Username:     "admin",
		PasswordHash: hash,
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
	})

	srv := NewServer(
		ServerConfig{Port: "0", WebhookSecret: webhookSecret},
		fleet, access, commands, report.NewService(time.UTC),
		authService, ratelimit.NewNoop(), logger.Noop(), time.UTC,
	)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)

	f := &serverFixture{server: ts, store: store, notifier: notifier}
	f.token = f.login(t, "admin", "hunter2-but-longer")
	return f
}

func (f *serverFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(f.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (f *serverFixture) request(t *testing.T, method, path string, payload interface{}) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/fleet/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "nope"})
	resp, err := http.Post(f.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVehicleLifecycleOverAPI(t *testing.T) {
	f := newServerFixture(t)

	resp := f.request(t, http.MethodPost, "/api/v1/vehicles", map[string]string{"plate": "a 11111", "description": "sedan"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// duplicate plate conflicts
	resp = f.request(t, http.MethodPost, "/api/v1/vehicles", map[string]string{"plate": "A 11111"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/api/v1/fleet/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Vehicles []usecase.VehicleStatus `json:"vehicles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	require.Len(t, status.Vehicles, 1)
	assert.Equal(t, "A 11111", status.Vehicles[0].Plate)
	assert.False(t, status.Vehicles[0].Held)

	resp = f.request(t, http.MethodDelete, "/api/v1/vehicles/A 11111", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRemoveHeldVehicleConflicts(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Vehicles().Add(ctx, domain.NewVehicle("B 22222", "", time.Now())))
	require.NoError(t, f.store.Actors().Add(ctx, domain.NewActor(7, "Maha", domain.RoleDriver, time.Now())))
	require.NoError(t, f.store.Ledger().Append(ctx,
		domain.NewLedgerEntry(time.Now(), 7, "Maha", "B 22222", domain.ActionOut)))

	resp := f.request(t, http.MethodDelete, "/api/v1/vehicles/B 22222", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestDecisionOverAPI(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	req := domain.NewAccessRequest("req-1", 42, "Dana", time.Now())
	require.NoError(t, f.store.Requests().Create(ctx, req))

	resp := f.request(t, http.MethodGet, "/api/v1/requests/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pending struct {
		Requests []*domain.AccessRequest `json:"requests"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))
	resp.Body.Close()
	require.Len(t, pending.Requests, 1)

	resp = f.request(t, http.MethodPost, "/api/v1/requests/req-1/decision", map[string]string{"decision": "approve"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// second decision loses
	resp = f.request(t, http.MethodPost, "/api/v1/requests/req-1/decision", map[string]string{"decision": "reject"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookSecretEnforced(t *testing.T) {
	f := newServerFixture(t)

	update := telegram.Update{UpdateID: 1}
	raw, _ := json.Marshal(update)

	resp, err := http.Post(f.server.URL+"/webhook/telegram", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebhookDispatchesCommand(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Vehicles().Add(ctx, domain.NewVehicle("A 11111", "", time.Now())))
	require.NoError(t, f.store.Actors().Add(ctx, domain.NewActor(7, "Maha", domain.RoleDriver, time.Now())))

	update := telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			From: &telegram.User{ID: 7, FirstName: "Maha"},
			Chat: telegram.Chat{ID: 7},
			Text: "/take A 11111",
		},
	}
	raw, _ := json.Marshal(update)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/webhook/telegram", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhookSecretHeader, webhookSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries, err := f.store.Ledger().ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A 11111", entries[0].Plate)

	replies := f.notifier.SentTo("7")
	require.NotEmpty(t, replies)
	assert.Contains(t, replies[len(replies)-1].Text, "You took A 11111")
}

func TestHistoryQueryValidation(t *testing.T) {
	f := newServerFixture(t)

	resp := f.request(t, http.MethodGet, "/api/v1/fleet/history?plate=A%2011111&date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestExportCSV(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Ledger().Append(ctx,
		domain.NewLedgerEntry(time.Now(), 7, "Maha", "A 11111", domain.ActionOut)))

	resp := f.request(t, http.MethodGet, "/api/v1/fleet/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Car Plate")
	assert.Contains(t, buf.String(), "A 11111")
}

func TestUpdateSettingRoundTrip(t *testing.T) {
	f := newServerFixture(t)

	resp := f.request(t, http.MethodPut, "/api/v1/settings", map[string]string{"key": "maintenance_interval_days", "value": "14"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var settings domain.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	resp.Body.Close()
	assert.Equal(t, 14, settings.MaintenanceInterval)
}
