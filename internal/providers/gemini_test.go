package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func geminiSuccessBody(text string) string {
	body := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			}},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     100,
			"candidatesTokenCount": 50,
			"totalTokenCount":      150,
		},
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func newTestGemini(url string) *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		RPM:        6000,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
}

func TestGeminiClient_Chat(t *testing.T) {
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q, want test-key", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(geminiSuccessBody(`{"page_type":"Pharmacy","bill_items":[]}`)))
	}))
	defer srv.Close()

	client := newTestGemini(srv.URL)
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "analyze bills"},
			{Role: "user", Content: "extract items", Images: [][]byte{[]byte("fake-png")}},
		},
		Temperature:    0.1,
		MaxTokens:      4096,
		ResponseFormat: &ResponseFormat{Type: "json_schema"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if !result.Success {
		t.Errorf("result not successful: %s", result.ErrorMessage)
	}
	if result.TotalTokens != 150 || result.PromptTokens != 100 || result.CompletionTokens != 50 {
		t.Errorf("token counts = %d/%d/%d, want 150/100/50",
			result.TotalTokens, result.PromptTokens, result.CompletionTokens)
	}
	if len(result.ParsedJSON) == 0 {
		t.Error("expected parsed JSON for structured request")
	}

	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "analyze bills" {
		t.Error("system message not mapped to systemInstruction")
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 2 {
		t.Fatalf("contents = %+v, want 1 message with text + image", gotBody.Contents)
	}
	if gotBody.Contents[0].Parts[1].InlineData == nil {
		t.Error("image not encoded as inline_data")
	}
	if gotBody.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Errorf("responseMimeType = %q, want application/json", gotBody.GenerationConfig.ResponseMIMEType)
	}
}

func TestGeminiClient_RetryOn429(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		w.Write([]byte(geminiSuccessBody("ok")))
	}))
	defer srv.Close()

	client := newTestGemini(srv.URL)
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed after retry: %v", err)
	}
	if !result.Success {
		t.Errorf("result not successful: %s", result.ErrorMessage)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestGeminiClient_NoRetryOnAuthError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	client := newTestGemini(srv.URL)
	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error on 401")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if !apiErr.Auth() || apiErr.Retryable() {
		t.Errorf("401 should be auth, non-retryable: %+v", apiErr)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retry)", got)
	}
}

func TestGeminiClient_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestGemini(srv.URL)
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if result.Success {
		t.Error("result should not be successful")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}
