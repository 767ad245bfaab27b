package config

// Config holds billscan configuration.
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Pipeline     PipelineCfg               `mapstructure:"pipeline" yaml:"pipeline"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`   // "gemini", "groq", "openai"
	Model          string `mapstructure:"model" yaml:"model"` // Model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	// MaxRetries bounds transport-level attempts inside the provider
	// client (429s, 5xx). These multiply with pipeline.max_attempts: a
	// page can cost up to max_attempts x max_retries HTTP calls.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	RetrySeconds   int    `mapstructure:"retry_seconds" yaml:"retry_seconds"`     // Base delay between retries
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // HTTP timeout
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// PipelineCfg holds extraction pipeline tunables.
type PipelineCfg struct {
	// Provider names the LLM provider used for extraction.
	Provider string `mapstructure:"provider" yaml:"provider"`
	// RenderDPI is the pdftoppm rendering resolution.
	RenderDPI int `mapstructure:"render_dpi" yaml:"render_dpi"`
	// MaxAttempts caps extraction attempts per page. Each attempt is a
	// full provider call, which carries its own transport retry budget
	// (llm_providers.*.max_retries), so the two settings multiply.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// RetrySeconds is the base delay between per-page attempts.
	RetrySeconds int `mapstructure:"retry_seconds" yaml:"retry_seconds"`
	// CallTimeoutSeconds bounds a single LLM call.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	// Temperature and MaxTokens are passed to the model.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	// AmountTolerance is the relative tolerance for the amount
	// consistency check and dedup amount matching.
	AmountTolerance float64 `mapstructure:"amount_tolerance" yaml:"amount_tolerance"`
	// FetchTimeoutSeconds bounds the document download.
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	// MaxDocumentMB caps the downloaded document size.
	MaxDocumentMB int `mapstructure:"max_document_mb" yaml:"max_document_mb"`
	// MaxConcurrentDocuments limits in-flight extraction requests;
	// requests beyond the limit get 503.
	MaxConcurrentDocuments int `mapstructure:"max_concurrent_documents" yaml:"max_concurrent_documents"`
}

// ServerCfg holds HTTP server settings.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"gemini": {
				Type:           "gemini",
				Model:          "gemini-2.0-flash-lite",
				APIKey:         "${GEMINI_API_KEY}",
				RateLimit:      60,
				MaxRetries:     3,
				RetrySeconds:   1,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"groq": {
				Type:           "groq",
				Model:          "llama-3.3-70b-versatile",
				APIKey:         "${GROQ_API_KEY}",
				RateLimit:      30,
				MaxRetries:     3,
				RetrySeconds:   1,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"openai": {
				Type:           "openai",
				Model:          "gpt-4o-mini",
				APIKey:         "${OPENAI_API_KEY}",
				RateLimit:      60,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
		},
		Pipeline: PipelineCfg{
			Provider:               "gemini",
			RenderDPI:              300,
			MaxAttempts:            3,
			RetrySeconds:           1,
			CallTimeoutSeconds:     120,
			Temperature:            0.1,
			MaxTokens:              4096,
			AmountTolerance:        0.01,
			FetchTimeoutSeconds:    60,
			MaxDocumentMB:          50,
			MaxConcurrentDocuments: 8,
		},
		Server: ServerCfg{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
