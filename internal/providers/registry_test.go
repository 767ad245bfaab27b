package providers

import (
	"testing"
	"time"
)

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-2.0-flash-lite",
				APIKey:    "key-a",
				RateLimit: 60,
				Enabled:   true,
			},
			"groq": {
				Type:    "groq",
				Model:   "llama-3.3-70b-versatile",
				APIKey:  "key-b",
				Enabled: true,
			},
			"disabled": {
				Type:    "openai",
				APIKey:  "key-c",
				Enabled: false,
			},
			"no-key": {
				Type:    "openai",
				Enabled: true,
			},
		},
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(testRegistryConfig())

	if !r.HasLLM("gemini") || !r.HasLLM("groq") {
		t.Errorf("expected gemini and groq registered, got %v", r.ListLLM())
	}
	if r.HasLLM("disabled") {
		t.Error("disabled provider should not be registered")
	}
	if r.HasLLM("no-key") {
		t.Error("provider without API key should not be registered")
	}

	client, err := r.GetLLM("gemini")
	if err != nil {
		t.Fatalf("GetLLM: %v", err)
	}
	if !client.SupportsVision() {
		t.Error("gemini client should support vision")
	}

	if _, err := r.GetLLM("nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRegistry_Reload(t *testing.T) {
	cfg := testRegistryConfig()
	r := NewRegistryFromConfig(cfg)

	before, _ := r.GetLLM("groq")

	// Changing a model recreates the client; removing a provider drops it.
	groq := cfg.LLMProviders["groq"]
	groq.Model = "other-model"
	cfg.LLMProviders["groq"] = groq
	delete(cfg.LLMProviders, "gemini")

	r.Reload(cfg)

	if r.HasLLM("gemini") {
		t.Error("removed provider still registered")
	}
	after, err := r.GetLLM("groq")
	if err != nil {
		t.Fatalf("GetLLM after reload: %v", err)
	}
	if before == after {
		t.Error("changed provider was not recreated")
	}
}

func TestRegistry_ReloadKeepsUnchangedClients(t *testing.T) {
	cfg := RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"gemini": {
				Type:       "gemini",
				Model:      "gemini-2.0-flash-lite",
				APIKey:     "key-a",
				RateLimit:  60,
				MaxRetries: 3,
				RetryDelay: time.Second,
				Enabled:    true,
			},
		},
	}
	r := NewRegistryFromConfig(cfg)
	before, _ := r.GetLLM("gemini")

	r.Reload(cfg)

	after, _ := r.GetLLM("gemini")
	if before != after {
		t.Error("unchanged provider was recreated on reload")
	}
}
