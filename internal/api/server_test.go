package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hydrogate/internal/hydro"
	"github.com/nerrad567/hydrogate/internal/infrastructure/config"
	"github.com/nerrad567/hydrogate/internal/infrastructure/database"
	"github.com/nerrad567/hydrogate/internal/infrastructure/logging"
	_ "github.com/nerrad567/hydrogate/migrations"
)

// testLogger returns a logger that only emits errors.
func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testDeps returns dependencies with sensible API and WebSocket settings.
func testDeps(repo hydro.Repository) Deps {
	return Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			Enabled:        true,
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  testLogger(),
		Repo:    repo,
		Version: "test",
	}
}

// setupTestDB opens a migrated sqlite database in a temp directory.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "hydro.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// testServer creates a Server backed by a real sqlite repository.
// modify, when non-nil, adjusts the dependencies before New is called.
func testServer(t *testing.T, modify func(*Deps)) (*Server, *database.DB) {
	t.Helper()

	db := setupTestDB(t)
	deps := testDeps(hydro.NewSQLRepository(db.DB, db.Rebind))
	deps.DB = db
	if modify != nil {
		modify(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, db
}

func seed(t *testing.T, db *database.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("seeding %q: %v", query, err)
	}
}

// doRequest sends a request through the full router and middleware chain.
func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

// fakeRepo returns canned rows, or err for every call when set.
type fakeRepo struct {
	mu       sync.Mutex
	err      error
	panicMsg string
}

func (f *fakeRepo) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeRepo) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.err
}

func (f *fakeRepo) LatestReading(context.Context) (*hydro.Reading, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &hydro.Reading{ID: 1}, nil
}

func (f *fakeRepo) ListReadings(context.Context) ([]hydro.HistoryReading, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return []hydro.HistoryReading{{ID: 1}}, nil
}

func (f *fakeRepo) ListActiveControls(context.Context) ([]hydro.ComponentControl, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return []hydro.ComponentControl{{ComponentName: "pump_a"}}, nil
}

func (f *fakeRepo) UpdateDispenseAmount(context.Context, string, *float64) (int64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (f *fakeRepo) Authenticate(_ context.Context, username, password string) (*hydro.Credentials, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &hydro.Credentials{Username: username, Password: password}, nil
}

func (f *fakeRepo) ListNotifications(context.Context) ([]hydro.Notification, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return []hydro.Notification{}, nil
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	deps := testDeps(&fakeRepo{})
	deps.Logger = nil
	if _, err := New(deps); err == nil {
		t.Error("New() without logger expected error")
	}

	deps = testDeps(nil)
	if _, err := New(deps); err == nil {
		t.Error("New() without repository expected error")
	}
}

func TestServerStartClose(t *testing.T) {
	srv, err := New(testDeps(&fakeRepo{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start() expected error")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close() //nolint:errcheck // Test cleanup

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/components-control")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServerStart_PortInUse(t *testing.T) {
	first, err := New(testDeps(&fakeRepo{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer first.Close() //nolint:errcheck // Test cleanup

	_, portStr, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort(%q) error = %v", first.Addr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port %q: %v", portStr, err)
	}
	deps := testDeps(&fakeRepo{})
	deps.Config.Port = port

	second, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck // Test cleanup
		t.Error("Start() on a bound port expected error")
	}
}

func TestCloseNotStarted(t *testing.T) {
	srv, err := New(testDeps(&fakeRepo{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() on unstarted server error = %v", err)
	}
}

// =============================================================================
// Middleware Tests
// =============================================================================

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, nil)
	h := srv.Handler()

	t.Run("generated when absent", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/components-control", "")
		if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
			t.Errorf("X-Request-ID = %q, want a UUID", id)
		}
	})

	t.Run("client value echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/components-control", nil)
		req.Header.Set("X-Request-ID", "dashboard-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "dashboard-42" {
			t.Errorf("X-Request-ID = %q, want dashboard-42", got)
		}
	})
}

func TestCORS(t *testing.T) {
	t.Run("all origins by default", func(t *testing.T) {
		srv, _ := testServer(t, nil)
		rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/notifications", "")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		srv, _ := testServer(t, nil)
		req := httptest.NewRequest(http.MethodOptions, "/api/update_controls", nil)
		req.Header.Set("Origin", "http://dashboard.local")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
			t.Errorf("Access-Control-Allow-Methods = %q, want POST listed", got)
		}
	})

	t.Run("configured origins", func(t *testing.T) {
		srv, _ := testServer(t, func(d *Deps) {
			d.Config.CORS.AllowedOrigins = []string{"http://dashboard.local"}
		})

		req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
		req.Header.Set("Origin", "http://dashboard.local")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
			t.Errorf("allowed origin header = %q", got)
		}

		req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("disallowed origin header = %q, want empty", got)
		}
	})
}

func TestRecovery(t *testing.T) {
	srv, err := New(testDeps(&fakeRepo{panicMsg: "boom"}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/notifications", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec); got != msgInternalError {
		t.Errorf("error = %q, want %q", got, msgInternalError)
	}

	// The server keeps serving after a panic.
	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health after panic status = %d, want 200", rec.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t, nil)
	body := `{"componentName":"` + strings.Repeat("x", maxRequestBodySize) + `","dispenseAmount":1}`

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/update_controls", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if got := decodeError(t, rec); got != msgNotFound {
		t.Errorf("error = %q, want %q", got, msgNotFound)
	}

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/update_controls", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on POST route status = %d, want 405", rec.Code)
	}
}

// =============================================================================
// Health and Metrics Tests
// =============================================================================

func TestHealth(t *testing.T) {
	srv, db := testServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["database"] != "ok" || body["version"] != "test" {
		t.Errorf("health = %v", body)
	}

	db.Close() //nolint:errcheck // closing to force failure

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rec.Code)
	}
	body = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "degraded" || body["database"] != "unreachable" {
		t.Errorf("degraded health = %v", body)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t, nil)
	h := srv.Handler()

	doRequest(t, h, http.MethodGet, "/api/components-control", "")
	doRequest(t, h, http.MethodPost, "/api/update_controls", `{"componentName":"ghost","dispenseAmount":1}`)

	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	out := rec.Body.String()
	for _, want := range []string{
		`hydrogate_http_requests_total{method="GET",route="/api/components-control",status="200"} 1`,
		`hydrogate_http_request_duration_seconds_bucket`,
		`hydrogate_control_updates_total{result="noop"} 1`,
		`hydrogate_websocket_clients 0`,
		`go_sql_open_connections{db_name="sqlite"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

// =============================================================================
// Database Outage Tests
// =============================================================================

func TestDatabaseOutage(t *testing.T) {
	repo := &fakeRepo{}
	srv, err := New(testDeps(repo))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h := srv.Handler()

	endpoints := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/hydro-parameters", ""},
		{http.MethodGet, "/api/components-control", ""},
		{http.MethodPost, "/api/user-login", `{"username":"grower","password":"basil"}`},
		{http.MethodPost, "/api/update_controls", `{"componentName":"pump_a","dispenseAmount":5}`},
		{http.MethodGet, "/api/fetch_data_source", ""},
		{http.MethodGet, "/api/notifications", ""},
	}

	repo.setErr(errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"))
	for _, ep := range endpoints {
		t.Run("down "+ep.path, func(t *testing.T) {
			rec := doRequest(t, h, ep.method, ep.path, ep.body)
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if rec.Body.String() != "{\"error\":\"Database error\"}\n" {
				t.Errorf("body = %q, want generic database error", rec.Body.String())
			}
		})
	}

	repo.setErr(nil)
	for _, ep := range endpoints {
		t.Run("restored "+ep.path, func(t *testing.T) {
			rec := doRequest(t, h, ep.method, ep.path, ep.body)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
