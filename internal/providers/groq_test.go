package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGroqClient_Chat(t *testing.T) {
	var gotBody groqRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"model": "llama-3.3-70b-versatile",
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": `{"page_type":"Bill Detail","bill_items":[]}`,
				}},
			},
			"usage": map[string]any{
				"prompt_tokens":     80,
				"completion_tokens": 20,
				"total_tokens":      100,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewGroqClient(GroqConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RPM:        6000,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "analyze bills"},
			{Role: "user", Content: "page text here"},
		},
		ResponseFormat: &ResponseFormat{Type: "json_schema"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if !result.Success || result.TotalTokens != 100 {
		t.Errorf("result = %+v, want success with 100 tokens", result)
	}
	if len(result.ParsedJSON) == 0 {
		t.Error("expected parsed JSON")
	}
	if client.SupportsVision() {
		t.Error("groq client must be text-only")
	}

	// Schema enforcement downgrades to json_object mode on the wire.
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", gotBody.ResponseFormat)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}
