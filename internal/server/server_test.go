package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/billscan/billscan/internal/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	configMgr, err := config.NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	srv, err := New(Config{ConfigManager: configMgr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestServer_HealthRoute(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestServer_ExtractRejectsBadURL(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/extract-bill-data",
		strings.NewReader(`{"document":"not-a-url"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
	}
	var resp struct {
		IsSuccess bool   `json:"is_success"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsSuccess || resp.Message == "" {
		t.Errorf("error body = %+v", resp)
	}
}

func TestServer_DefaultAddr(t *testing.T) {
	srv := testServer(t)
	if srv.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q, want 0.0.0.0:8080", srv.Addr())
	}
}
