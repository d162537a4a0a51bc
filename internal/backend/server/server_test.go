package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"SilentFail/internal/backend/dependencies"
	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/services"
	"SilentFail/internal/config"
	sharedmodels "SilentFail/internal/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCronSecret = "cron-secret"

var t0 = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server    *Server
	container *dependencies.Container
	clock     *testClock
	apiKey    string
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	apiKey := services.GenerateAPIKey()
	cfg := &config.Config{
		App:      config.AppConfig{Name: "silentfail", Version: "test", URL: "http://localhost:8080"},
		Server:   config.ServerConfig{Port: 0, Mode: gin.TestMode},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Security: config.SecurityConfig{
			CronSecret:      testCronSecret,
			BootstrapEmail:  "ops@example.com",
			BootstrapAPIKey: apiKey,
			BcryptCost:      4,
		},
		Monitor: config.MonitorConfig{GraceWindow: 10},
		Sweep:   config.SweepConfig{LockTTL: time.Minute},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := dependencies.NewContainer(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	clock := &testClock{now: t0}
	container.Clock = clock.Now

	return &testEnv{
		server:    New(&Config{Port: 0, Mode: gin.TestMode}, container),
		container: container,
		clock:     clock,
		apiKey:    apiKey,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.GetRouter().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) owner() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.apiKey, "Content-Type": "application/json"}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (e *testEnv) createMonitor(t *testing.T, body string) *models.Monitor {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/monitors", body, e.owner())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var monitor models.Monitor
	decode(t, rec, &monitor)
	return &monitor
}

func TestServer_HealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
	assert.Contains(t, rec.Body.String(), `"alert_backlog":0`)

	rec = env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_HeartbeatTerminalAndJSON(t *testing.T) {
	env := newTestEnv(t)
	monitor := env.createMonitor(t, `{"name":"nightly-backup","interval":5}`)
	assert.Equal(t, models.MonitorStatusPending, monitor.Status)

	rec := env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "SYSTEM STATUS: ONLINE")
	assert.Contains(t, rec.Body.String(), "nightly-backup")
	assert.Contains(t, rec.Body.String(), "Heartbeat synced")

	env.clock.Advance(5 * time.Minute)
	rec = env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key+"?format=json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.HeartbeatResult
	decode(t, rec, &result)
	assert.Equal(t, models.MonitorStatusUp, result.NewStatus)
	assert.Equal(t, int64(300), result.DriftSeconds)
}

func TestServer_HeartbeatUnknownKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/ping/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT FOUND")
	assert.Contains(t, rec.Body.String(), "does-not-exist")

	rec = env.do(t, http.MethodGet, "/api/v1/ping/does-not-exist?format=json", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec, nil).Error)

	rec = env.do(t, http.MethodPost, "/api/v1/ping/does-not-exist", "boom", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_PrivateMonitorSecret(t *testing.T) {
	env := newTestEnv(t)
	monitor := env.createMonitor(t, `{"name":"payroll","interval":60,"private_monitor":true}`)
	require.NotNil(t, monitor.Secret)
	secret := *monitor.Secret

	rec := env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized: Invalid Secret\n", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key+"?secret=wrong", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/ping/"+monitor.Key, "crash", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key+"?secret="+secret, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", map[string]string{"Authorization": "Bearer " + secret})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_FailureReport(t *testing.T) {
	env := newTestEnv(t)
	monitor := env.createMonitor(t, `{"name":"etl","interval":5}`)

	rec := env.do(t, http.MethodPost, "/api/v1/ping/"+monitor.Key+"?format=json", "Traceback: disk full", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var result models.FailureResult
	decode(t, rec, &result)
	assert.Equal(t, models.MonitorStatusDown, result.NewStatus)
	assert.True(t, result.DowntimeOpened)

	rec = env.do(t, http.MethodPost, "/api/v1/ping/"+monitor.Key, "again", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "FAILURE RECORDED")
}

func TestServer_CronCheck(t *testing.T) {
	env := newTestEnv(t)
	monitor := env.createMonitor(t, `{"name":"etl","interval":5,"grace_period":2}`)

	rec := env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cron/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cron/check", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cronAuth := map[string]string{"Authorization": "Bearer " + testCronSecret}

	rec = env.do(t, http.MethodGet, "/api/v1/cron/check", "", cronAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sharedmodels.CronCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sharedmodels.CronCheckResponse{Success: true, Checked: 1, MarkedDown: 0}, resp)

	env.clock.Advance(8 * time.Minute)
	rec = env.do(t, http.MethodGet, "/api/v1/cron/check", "", cronAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.MarkedDown)

	rec = env.do(t, http.MethodGet, "/api/v1/cron/check", "", cronAuth)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Checked)
	assert.Equal(t, 0, resp.MarkedDown)

	rec = env.do(t, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alert_backlog":1`)
}

func TestServer_CronCheckConflict(t *testing.T) {
	env := newTestEnv(t)

	_, ok, err := env.container.Queue.AcquireLock(context.Background(), services.DefaultSweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	rec := env.do(t, http.MethodGet, "/api/v1/cron/check", "", map[string]string{"Authorization": "Bearer " + testCronSecret})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_MonitorsRequireOwnerKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/monitors", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/monitors", "", map[string]string{"Authorization": "Bearer " + services.GenerateAPIKey()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", decode(t, rec, nil).Error)
}

func TestServer_MonitorBindingRanges(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"interval above month", `{"name":"etl","interval":43201}`, "interval must be at most 43200"},
		{"interval zero", `{"name":"etl","interval":0}`, "interval must be at least 1"},
		{"grace above week", `{"name":"etl","interval":5,"grace_period":10081}`, "grace_period must be at most 10080"},
		{"negative grace", `{"name":"etl","interval":5,"grace_period":-1}`, "grace_period must be at least 0"},
		{"name too long", `{"name":"` + strings.Repeat("n", 101) + `","interval":5}`, "name must be at most 100 characters"},
		{"missing name", `{"interval":5}`, "name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/monitors", tt.body, env.owner())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode(t, rec, nil)
			assert.Equal(t, "validation_failed", resp.Error)
			assert.Contains(t, resp.Message, tt.wantMsg)
		})
	}

	// границы включительно
	monitor := env.createMonitor(t, `{"name":"monthly","interval":43200,"grace_period":10080}`)
	assert.Equal(t, 43200, monitor.Interval)
	assert.Equal(t, 10080, monitor.GracePeriod)

	rec := env.do(t, http.MethodPatch, "/api/v1/monitors/"+monitor.ID, `{"grace_period":10081}`, env.owner())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec, nil)
	assert.Equal(t, "validation_failed", resp.Error)
	assert.Contains(t, resp.Message, "grace_period must be at most 10080")

	rec = env.do(t, http.MethodPatch, "/api/v1/monitors/"+monitor.ID, `{"name":"   "}`, env.owner())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec, nil).Error)
}

func TestServer_MonitorLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/monitors", `{"name":"","interval":5}`, env.owner())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec, nil).Error)

	rec = env.do(t, http.MethodPost, "/api/v1/monitors", `{not json`, env.owner())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	monitor := env.createMonitor(t, `{"name":"backup","interval":1440,"use_smart_grace":true}`)
	assert.Equal(t, 5, monitor.GracePeriod)
	assert.True(t, monitor.UseSmartGrace)

	var list struct {
		Monitors []*models.Monitor `json:"monitors"`
		Count    int               `json:"count"`
	}
	rec = env.do(t, http.MethodGet, "/api/v1/monitors", "", env.owner())
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = env.do(t, http.MethodPatch, "/api/v1/monitors/"+monitor.ID, `{"name":"db-backup","grace_period":30}`, env.owner())
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Monitor
	decode(t, rec, &updated)
	assert.Equal(t, "db-backup", updated.Name)
	assert.Equal(t, 30, updated.GracePeriod)

	rec = env.do(t, http.MethodPatch, "/api/v1/monitors/"+monitor.ID, `{"interval":0}`, env.owner())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/monitors/"+monitor.ID, "", env.owner())
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.MonitorDetail
	decode(t, rec, &detail)
	assert.Equal(t, monitor.ID, detail.Monitor.ID)
	assert.Equal(t, 24, detail.Uptime.WindowHours)

	rec = env.do(t, http.MethodPost, "/api/v1/monitors/"+monitor.ID+"/rotate-key", "", env.owner())
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated models.Monitor
	decode(t, rec, &rotated)
	assert.NotEqual(t, monitor.Key, rotated.Key)

	rec = env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/monitors/"+monitor.ID, "", env.owner())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/monitors/"+monitor.ID, "", env.owner())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Uptime(t *testing.T) {
	env := newTestEnv(t)
	monitor := env.createMonitor(t, `{"name":"etl","interval":5}`)

	rec := env.do(t, http.MethodPost, "/api/v1/ping/"+monitor.Key, "crash", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.clock.Advance(72 * time.Minute)
	rec = env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/monitors/"+monitor.ID+"/uptime?hours=24", "", env.owner())
	require.Equal(t, http.StatusOK, rec.Code)
	var uptime models.UptimeAggregate
	decode(t, rec, &uptime)
	assert.Equal(t, 72, uptime.TotalDowntimeMinutes)
	assert.InDelta(t, 95.0, uptime.UptimePercentage, 0.0001)
	assert.Equal(t, 1, uptime.IncidentCount)

	for _, q := range []string{"abc", "0", "721"} {
		rec = env.do(t, http.MethodGet, "/api/v1/monitors/"+monitor.ID+"/uptime?hours="+q, "", env.owner())
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/monitors/not-a-monitor/uptime", "", env.owner())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RotateAPIKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/account/api-key", "", env.owner())
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		APIKey string `json:"api_key"`
	}
	decode(t, rec, &body)
	require.True(t, strings.HasPrefix(body.APIKey, services.APIKeyPrefix))

	rec = env.do(t, http.MethodGet, "/api/v1/monitors", "", env.owner())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/monitors", "", map[string]string{"Authorization": "Bearer " + body.APIKey})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_DeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	monitor := env.createMonitor(t, `{"name":"etl","interval":5,"grace_period":1}`)
	rec := env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env.clock.Advance(10 * time.Minute)
	rec = env.do(t, http.MethodGet, "/api/v1/cron/check", "", map[string]string{"Authorization": "Bearer " + testCronSecret})
	require.Equal(t, http.StatusOK, rec.Code)

	open, err := env.container.Database.Repos().Downtimes.GetOpen(ctx, monitor.ID)
	require.NoError(t, err)
	require.NotNil(t, open)

	rec = env.do(t, http.MethodDelete, "/api/v1/account", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/account", "", env.owner())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "account_deleted", decode(t, rec, nil).Message)

	repos := env.container.Database.Repos()
	stored, err := repos.Monitors.GetByID(ctx, monitor.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	pings, err := repos.Pings.ListRecent(ctx, monitor.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pings)

	downtimes, err := repos.Downtimes.ListRecent(ctx, monitor.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, downtimes)

	rec = env.do(t, http.MethodGet, "/api/v1/monitors", "", env.owner())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key+"?format=json", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MonitorsWebSocket(t *testing.T) {
	env := newTestEnv(t)
	monitor := env.createMonitor(t, `{"name":"stream-me","interval":5}`)

	ts := httptest.NewServer(env.server.GetRouter())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/monitors"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?api_key="+env.apiKey, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var hello envelope
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Message)

	rec := env.do(t, http.MethodGet, "/api/v1/ping/"+monitor.Key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var event models.MonitorEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventHeartbeat, event.Type)
	assert.Equal(t, monitor.ID, event.MonitorID)
	assert.Equal(t, models.MonitorStatusUp, event.Status)
}

func TestRedactQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping/k?secret=s3cr3t&format=json&api_key=sk_x", nil)
	got := redactQuery(req.URL.Query())
	assert.NotContains(t, got, "s3cr3t")
	assert.NotContains(t, got, "sk_x")
	assert.Contains(t, got, "format=json")
}
