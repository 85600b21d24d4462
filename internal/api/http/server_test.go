package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vigil-dev/vigil/internal/api"
	"github.com/vigil-dev/vigil/internal/cliutil"
	"github.com/vigil-dev/vigil/internal/engine"
	"github.com/vigil-dev/vigil/internal/metrics"
)

type mockController struct {
	statusFn   func(stdcontext.Context) (*api.StatusReport, error)
	startAllFn func(stdcontext.Context) error
	stopAllFn  func(stdcontext.Context) error
	startFn    func(stdcontext.Context, string) error
	stopFn     func(stdcontext.Context, string) error
	reloadFn   func(stdcontext.Context) (*api.ReloadResult, error)
}

func (m *mockController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return &api.StatusReport{}, nil
}

func (m *mockController) StartAll(ctx stdcontext.Context) error {
	if m.startAllFn != nil {
		return m.startAllFn(ctx)
	}
	return nil
}

func (m *mockController) StopAll(ctx stdcontext.Context) error {
	if m.stopAllFn != nil {
		return m.stopAllFn(ctx)
	}
	return nil
}

func (m *mockController) StartService(ctx stdcontext.Context, name string) error {
	if m.startFn != nil {
		return m.startFn(ctx, name)
	}
	return nil
}

func (m *mockController) StopService(ctx stdcontext.Context, name string) error {
	if m.stopFn != nil {
		return m.stopFn(ctx, name)
	}
	return nil
}

func (m *mockController) Reload(ctx stdcontext.Context) (*api.ReloadResult, error) {
	if m.reloadFn != nil {
		return m.reloadFn(ctx)
	}
	return &api.ReloadResult{}, nil
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Controller == nil {
		cfg.Controller = &mockController{}
	}
	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("failed creating server: %v", err)
	}
	return server
}

func serve(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	server.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var envelope errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error
}

func TestNewServerRejectsTypedNilController(t *testing.T) {
	var ctrl api.Controller = (*mockController)(nil)
	_, err := NewServer(Config{Controller: ctrl})
	if err == nil {
		t.Fatalf("expected error when controller is typed nil")
	}
	if !strings.Contains(err.Error(), "mockController") {
		t.Fatalf("expected error to describe typed nil controller, got %v", err)
	}
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           defaultAddr,
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "0.0.0.0:80",
		"[::]:80":    "[::]:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
	}

	for input, expected := range tests {
		input, expected := input, expected
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddr(input); got != expected {
				t.Fatalf("normalizeAddr(%q)=%q, want %q", input, got, expected)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{
				GeneratedAt: time.Unix(123, 0),
				Services: []api.ServiceReport{
					{Name: "web", Status: "running", PID: 42, Restarts: 1},
				},
			}, nil
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(t, server, http.MethodGet, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}

	var body api.StatusReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if len(body.Services) != 1 || body.Services[0].Name != "web" {
		t.Fatalf("unexpected services payload: %+v", body.Services)
	}
}

func TestHandleStatusMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, Config{})

	rec := serve(t, server, http.MethodPost, "/api/v1/status")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow header %q, got %q", http.MethodGet, allow)
	}
}

func TestHandleServiceActions(t *testing.T) {
	var started, stopped string
	ctrl := &mockController{
		startFn: func(_ stdcontext.Context, name string) error {
			started = name
			return nil
		},
		stopFn: func(_ stdcontext.Context, name string) error {
			stopped = name
			return nil
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(t, server, http.MethodPost, "/api/v1/services/web/start")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if started != "web" {
		t.Fatalf("start dispatched to %q, want web", started)
	}

	rec = serve(t, server, http.MethodPost, "/api/v1/services/db/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stopped != "db" {
		t.Fatalf("stop dispatched to %q, want db", stopped)
	}

	var body okBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Service != "db" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleServiceInvalidPath(t *testing.T) {
	server := newTestServer(t, Config{})

	for _, target := range []string{
		"/api/v1/services/",
		"/api/v1/services/web",
		"/api/v1/services/web/promote",
		"/api/v1/services/web/start/extra",
	} {
		rec := serve(t, server, http.MethodPost, target)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rec.Code)
		}
		if body := decodeError(t, rec); body.Code != "unknown_service" {
			t.Fatalf("%s: expected unknown_service code, got %q", target, body.Code)
		}
	}
}

func TestHandleServiceUnknownName(t *testing.T) {
	ctrl := &mockController{
		startFn: func(_ stdcontext.Context, name string) error {
			return fmt.Errorf("%w: %s", engine.ErrUnknownService, name)
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(t, server, http.MethodPost, "/api/v1/services/nope/start")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "unknown_service" {
		t.Fatalf("expected unknown_service code, got %q", body.Code)
	}
	if !strings.Contains(body.Message, "nope") {
		t.Fatalf("expected message naming the service, got %q", body.Message)
	}
}

func TestHandleReloadBlocked(t *testing.T) {
	ctrl := &mockController{
		reloadFn: func(stdcontext.Context) (*api.ReloadResult, error) {
			return nil, fmt.Errorf("%w: service web is running", engine.ErrReloadBlocked)
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(t, server, http.MethodPost, "/api/v1/reload")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "reload_blocked" {
		t.Fatalf("expected reload_blocked code, got %q", body.Code)
	}
}

func TestHandleReload(t *testing.T) {
	ctrl := &mockController{
		reloadFn: func(stdcontext.Context) (*api.ReloadResult, error) {
			return &api.ReloadResult{Services: 3, StartInterval: "2s"}, nil
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(t, server, http.MethodPost, "/api/v1/reload")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body okBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Reload == nil || body.Reload.Services != 3 {
		t.Fatalf("unexpected reload payload: %+v", body.Reload)
	}
}

func TestHandleLogsTail(t *testing.T) {
	var asked int
	logs := func(n int) []cliutil.LogRecord {
		asked = n
		return []cliutil.LogRecord{{Service: "web", Message: "ready", Level: "info"}}
	}
	server := newTestServer(t, Config{Logs: logs})

	rec := serve(t, server, http.MethodGet, "/api/v1/logs?tail=25")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if asked != 25 {
		t.Fatalf("tail = %d, want 25", asked)
	}
	var body logsBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Logs) != 1 || body.Logs[0].Service != "web" {
		t.Fatalf("unexpected logs payload: %+v", body.Logs)
	}

	rec = serve(t, server, http.MethodGet, "/api/v1/logs?tail=banana")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed tail, got %d", rec.Code)
	}

	rec = serve(t, server, http.MethodGet, "/api/v1/logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if asked != defaultLogTail {
		t.Fatalf("default tail = %d, want %d", asked, defaultLogTail)
	}
}

func TestHandleLogsWithoutSource(t *testing.T) {
	server := newTestServer(t, Config{})

	rec := serve(t, server, http.MethodGet, "/api/v1/logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body logsBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Logs == nil || len(body.Logs) != 0 {
		t.Fatalf("expected empty logs array, got %+v", body.Logs)
	}
}

func TestHandleStopAllError(t *testing.T) {
	ctrl := &mockController{
		stopAllFn: func(stdcontext.Context) error {
			return errors.New("boom")
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(t, server, http.MethodPost, "/api/v1/stop")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "internal_error" {
		t.Fatalf("expected internal_error code, got %q", body.Code)
	}
}

func TestHandleStatusGroupNotRunning(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return nil, fmt.Errorf("%w for status", api.ErrGroupNotRunning)
		},
	}
	server := newTestServer(t, Config{Controller: ctrl})

	rec := serve(t, server, http.MethodGet, "/api/v1/status")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "group_not_running" {
		t.Fatalf("expected group_not_running code, got %q", body.Code)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, Config{})

	rec := serve(t, server, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body okBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected ok status, got %q", body.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, Config{})

	service := "http_metrics"
	metrics.SetServiceUp(service, true)
	metrics.ObserveHealthWait(service, 200*time.Millisecond)

	rec := serve(t, server, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", rec.Code)
	}
	body := rec.Body.String()
	expected := fmt.Sprintf("vigil_service_up{service=%q} 1", service)
	if !strings.Contains(body, expected) {
		t.Fatalf("expected body to contain %q, got:\n%s", expected, body)
	}
	if !strings.Contains(body, fmt.Sprintf("vigil_health_wait_seconds_count{service=%q} 1", service)) {
		t.Fatalf("expected health wait count for service %q, got:\n%s", service, body)
	}
}
