package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"engram/internal/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	var captured *config.Config
	d := newTestDispatcherWithConfig(t, func(cfg *config.Config) {
		if mutate != nil {
			mutate(cfg)
		}
		captured = cfg
	})
	return NewServer(d, captured)
}

func postCall(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/call", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, env
}

func TestServerCallEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, env := postCall(t, h, `{"tool": "ping"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if env["result"] != "pong" {
		t.Errorf("envelope = %v", env)
	}
}

func TestServerCallWithArguments(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, env := postCall(t, h, `{
		"tool": "start_ghap",
		"arguments": {
			"domain": "debugging",
			"strategy": "read-the-error",
			"goal": "Fix the flaky login test",
			"hypothesis": "The session cookie expires before the assertion runs",
			"action": "Freeze the clock during the login flow",
			"prediction": "The test passes ten times in a row"
		}
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env["ok"] != true {
		t.Fatalf("envelope = %v", env)
	}
	id, _ := env["id"].(string)
	if !strings.HasPrefix(id, "ghap_") {
		t.Errorf("id = %q", id)
	}
}

// Tool failures ride inside the envelope; the transport still answers 200.
func TestServerToolErrorsStayHTTP200(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, env := postCall(t, h, `{"tool": "summon_demon"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	e, ok := env["error"].(map[string]interface{})
	if !ok || e["type"] != "unknown_tool" {
		t.Errorf("envelope = %v", env)
	}
}

func TestServerRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, env := postCall(t, h, `{"tool": `)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	e, ok := env["error"].(map[string]interface{})
	if !ok || e["type"] != "bad_request" {
		t.Fatalf("envelope = %v", env)
	}
	msg, _ := e["message"].(string)
	if !strings.Contains(msg, "malformed request body") {
		t.Errorf("message = %q", msg)
	}
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("health response is not JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if body["server"] != config.ServerName || body["version"] != config.Version {
		t.Errorf("identity = %v", body)
	}
}

func TestServerMetricsRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", rec.Code)
	}

	off := newTestServer(t, func(cfg *config.Config) { cfg.Daemon.Metrics = false })
	rec = httptest.NewRecorder()
	off.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled metrics status = %d, want 404", rec.Code)
	}
}

func TestServerAddr(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Daemon.Host = "127.0.0.1"
		cfg.Daemon.Port = 7378
	})
	if got := srv.Addr(); got != "127.0.0.1:7378" {
		t.Errorf("addr = %q", got)
	}
}
