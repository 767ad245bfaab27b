package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const OpenAIName = "openai"

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RPM          int
}

// OpenAIClient implements LLMClient using the OpenAI Responses API via
// the official SDK.
type OpenAIClient struct {
	client       openai.Client
	apiKey       string
	defaultModel string
	limiter      *RateLimiter
	timeout      time.Duration
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 60
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		limiter:      NewRateLimiter(cfg.RPM),
		timeout:      cfg.Timeout,
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// SupportsVision reports that OpenAI accepts image inputs.
func (c *OpenAIClient) SupportsVision() bool {
	return true
}

// Chat sends a request through the Responses API. The SDK handles its
// own retry/backoff; the local rate limiter smooths request bursts.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		ModelUsed: model,
		Attempts:  1,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		result.Success = false
		result.ErrorType = "context_cancelled"
		result.ErrorMessage = err.Error()
		return result, err
	}

	params := responses.ResponseNewParams{Model: model}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}

	instructions, items := buildInput(req.Messages)
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: items}

	if req.ResponseFormat != nil && len(req.ResponseFormat.JSONSchema) > 0 {
		name, schema, err := splitSchemaWrapper(req.ResponseFormat.JSONSchema)
		if err != nil {
			result.Success = false
			result.ErrorType = "schema_error"
			result.ErrorMessage = err.Error()
			return result, err
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(name, schema),
		}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.Responses.New(callCtx, params)
	if err != nil {
		result.Success = false
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	result.Success = true
	result.Content = resp.OutputText()
	result.PromptTokens = int(resp.Usage.InputTokens)
	result.CompletionTokens = int(resp.Usage.OutputTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)

	if req.ResponseFormat != nil && result.Content != "" {
		parsed, err := parseStructuredJSON(result.Content)
		if err != nil {
			result.Success = false
			result.ErrorType = "json_parse"
			result.ErrorMessage = err.Error()
		} else {
			result.ParsedJSON = parsed
		}
	}

	return result, nil
}

// buildInput converts chat messages into Responses API input items.
// The system message becomes instructions rather than an input item.
func buildInput(messages []Message) (instructions string, items responses.ResponseInputParam) {
	for _, m := range messages {
		if m.Role == "system" {
			instructions = m.Content
			continue
		}

		content := responses.ResponseInputMessageContentListParam{
			responses.ResponseInputContentParamOfInputText(m.Content),
		}
		mime := m.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		for _, img := range m.Images {
			dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
			content = append(content, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					ImageURL: openai.String(dataURL),
				},
			})
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRole(m.Role)))
	}
	return instructions, items
}

// splitSchemaWrapper pulls the schema name and body out of the
// {"name","strict","schema"} wrapper used by ResponseFormat.
func splitSchemaWrapper(raw json.RawMessage) (string, map[string]any, error) {
	var wrapper struct {
		Name   string         `json:"name"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return "", nil, fmt.Errorf("invalid json_schema wrapper: %w", err)
	}
	if wrapper.Schema == nil {
		// Raw schema document without a wrapper.
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			return "", nil, fmt.Errorf("invalid schema document: %w", err)
		}
		return "structured_output", schema, nil
	}
	if wrapper.Name == "" {
		wrapper.Name = "structured_output"
	}
	return wrapper.Name, wrapper.Schema, nil
}

// Verify interface
var _ LLMClient = (*OpenAIClient)(nil)
