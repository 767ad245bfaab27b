package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/billscan/billscan/internal/billing"
	"github.com/billscan/billscan/internal/config"
	"github.com/billscan/billscan/internal/metrics"
	"github.com/billscan/billscan/internal/providers"
	"github.com/billscan/billscan/internal/svcctx"
)

const pharmacyPage = `{"page_type":"Pharmacy","bill_items":[{"item_name":"Livi 300mg Tab","item_amount":448.0,"item_rate":32.0,"item_quantity":14}]}`

// pngDocument is a fake PNG body: valid magic bytes plus filler.
var pngDocument = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 64)...)

func testPipelineCfg() config.PipelineCfg {
	return config.PipelineCfg{
		Provider:               "mock",
		MaxAttempts:            1,
		CallTimeoutSeconds:     5,
		FetchTimeoutSeconds:    5,
		MaxDocumentMB:          1,
		MaxConcurrentDocuments: 2,
	}
}

func testServices(t *testing.T, mock *providers.MockClient) *svcctx.Services {
	t.Helper()
	reg := providers.NewRegistry()
	reg.RegisterLLM("mock", mock)
	return &svcctx.Services{
		Registry: reg,
		Metrics:  metrics.New(),
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func postExtract(t *testing.T, ep *ExtractEndpoint, svcs *svcctx.Services, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/extract-bill-data", strings.NewReader(body))
	if svcs != nil {
		req = req.WithContext(svcctx.WithServices(context.Background(), svcs))
	}
	w := httptest.NewRecorder()
	_, _, handler := ep.Route()
	handler(w, req)
	return w
}

func TestExtractEndpoint_InvalidURL(t *testing.T) {
	mock := providers.NewMockClient()
	ep := NewExtractEndpoint(testPipelineCfg())
	svcs := testServices(t, mock)

	tests := []struct {
		name string
		body string
	}{
		{"empty document", `{"document":""}`},
		{"bad scheme", `{"document":"ftp://example.com/bill.pdf"}`},
		{"no host", `{"document":"https:///bill.pdf"}`},
		{"malformed body", `{"document":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postExtract(t, ep, svcs, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var resp billing.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.IsSuccess {
				t.Error("error response must have is_success=false")
			}
			if resp.Message == "" {
				t.Error("error response must carry a message")
			}
		})
	}

	if mock.RequestCount() != 0 {
		t.Errorf("llm requests = %d, want 0 for rejected input", mock.RequestCount())
	}
}

func TestExtractEndpoint_SinglePageImage(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngDocument)
	}))
	defer docServer.Close()

	mock := providers.NewMockClient()
	mock.ResponseText = pharmacyPage
	mock.PromptTokensPer = 100
	mock.CompletionTokensPer = 50

	ep := NewExtractEndpoint(testPipelineCfg())
	svcs := testServices(t, mock)

	w := postExtract(t, ep, svcs, `{"document":"`+docServer.URL+`/bill.png"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp billing.ExtractionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsSuccess {
		t.Error("expected is_success=true")
	}
	if resp.Data.TotalItemCount != 1 {
		t.Errorf("total_item_count = %d, want 1", resp.Data.TotalItemCount)
	}
	page := resp.Data.PagewiseLineItems[0]
	if page.PageNo != "1" || page.PageType != "Pharmacy" {
		t.Errorf("page = %+v", page)
	}
	if got := page.BillItems[0].ItemAmount; got != 448.0 {
		t.Errorf("item_amount = %v, want 448.0", got)
	}
	if resp.TokenUsage.TotalTokens != 150 {
		t.Errorf("total_tokens = %d, want 150", resp.TokenUsage.TotalTokens)
	}
}

func TestExtractEndpoint_DocumentFetchFailure(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer docServer.Close()

	mock := providers.NewMockClient()
	ep := NewExtractEndpoint(testPipelineCfg())
	svcs := testServices(t, mock)

	w := postExtract(t, ep, svcs, `{"document":"`+docServer.URL+`/missing.pdf"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("llm requests = %d, want 0 when fetch fails", mock.RequestCount())
	}
}

func TestExtractEndpoint_UnknownProvider(t *testing.T) {
	cfg := testPipelineCfg()
	cfg.Provider = "nonexistent"
	ep := NewExtractEndpoint(cfg)
	svcs := testServices(t, providers.NewMockClient())

	w := postExtract(t, ep, svcs, `{"document":"https://example.com/bill.pdf"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestExtractEndpoint_AtCapacity(t *testing.T) {
	cfg := testPipelineCfg()
	cfg.MaxConcurrentDocuments = 1
	ep := NewExtractEndpoint(cfg)
	svcs := testServices(t, providers.NewMockClient())

	// Occupy the only slot.
	ep.semaphore() <- struct{}{}
	defer func() { <-ep.sem }()

	w := postExtract(t, ep, svcs, `{"document":"https://example.com/bill.pdf"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	var resp billing.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if !strings.Contains(resp.Message, "capacity") {
		t.Errorf("message = %q, want capacity hint", resp.Message)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ep := &HealthEndpoint{}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	_, _, handler := ep.Route()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ep := &StatusEndpoint{}
	svcs := testServices(t, providers.NewMockClient())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req = req.WithContext(svcctx.WithServices(context.Background(), svcs))
	w := httptest.NewRecorder()
	_, _, handler := ep.Route()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Available) != 1 || resp.Available[0] != "mock" {
		t.Errorf("available_providers = %v, want [mock]", resp.Available)
	}
}
