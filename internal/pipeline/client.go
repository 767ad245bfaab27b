package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/billscan/billscan/internal/billing"
	"github.com/billscan/billscan/internal/document"
	"github.com/billscan/billscan/internal/prompts"
	"github.com/billscan/billscan/internal/providers"
)

// extractionSchemaRaw is the json_schema wrapper sent with every request.
var extractionSchemaRaw = func() json.RawMessage {
	b, err := json.Marshal(prompts.ExtractionSchema["json_schema"])
	if err != nil {
		panic(fmt.Sprintf("marshal extraction schema: %v", err))
	}
	return b
}()

// extractPage runs the LLM over one page with bounded retries. Token
// usage from every attempt, including failed ones, is added to usage.
func (p *Pipeline) extractPage(ctx context.Context, page document.Page, seenItems []string, usage *billing.TokenUsage) (*prompts.Result, error) {
	// A text-only provider with no text layer would extract from an
	// empty prompt; fail the page up front instead of inviting
	// hallucinated items.
	if !p.client.SupportsVision() && page.Text == "" {
		return nil, fmt.Errorf("page %d has no text layer for text-only provider %s", page.PageNo, p.client.Name())
	}

	req := p.buildRequest(page, seenItems)

	var result *prompts.Result
	err := retry.Do(
		func() error {
			res, err := p.callOnce(ctx, req, usage)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.cfg.MaxAttempts)),
		retry.Delay(p.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return providers.IsRetryable(err) && !providers.IsAuthError(err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildRequest assembles the chat request for a page. Vision clients get
// the rendered image; text-only clients get the embedded text layer.
func (p *Pipeline) buildRequest(page document.Page, seenItems []string) *providers.ChatRequest {
	pctx := prompts.PageContext{
		PageNo:        page.PageNo,
		PreviousItems: seenItems,
	}

	userMsg := providers.Message{Role: "user"}
	if p.client.SupportsVision() {
		userMsg.Images = [][]byte{page.ImagePNG}
		userMsg.ImageMIME = page.MIME
	} else {
		pctx.PageText = page.Text
	}
	userMsg.Content = prompts.UserPrompt(pctx)

	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: prompts.SystemPrompt()},
			userMsg,
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Timeout:     p.cfg.CallTimeout,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: extractionSchemaRaw,
		},
	}
}

// callOnce performs a single chat call through the breaker, then parses
// and validates the structured output. Output that fails validation gets
// one in-band repair prompt before the attempt is declared failed.
func (p *Pipeline) callOnce(ctx context.Context, req *providers.ChatRequest, usage *billing.TokenUsage) (*prompts.Result, error) {
	chatResult, err := p.chat(ctx, req, usage)
	if err != nil {
		return nil, err
	}

	result, vErr := decodeResult(chatResult)
	if vErr == nil {
		return result, nil
	}

	p.logger.Warn("structured output invalid, attempting repair", "error", vErr)

	repairReq := *req
	repairReq.Messages = append(append([]providers.Message{}, req.Messages...),
		providers.Message{Role: "assistant", Content: chatResult.Content},
		providers.Message{Role: "user", Content: providers.StructuredRepairPrompt(extractionSchemaRaw, chatResult.Content, vErr)},
	)

	repaired, err := p.chat(ctx, &repairReq, usage)
	if err != nil {
		return nil, err
	}

	result, vErr = decodeResult(repaired)
	if vErr != nil {
		return nil, fmt.Errorf("structured output invalid after repair: %w", vErr)
	}
	return result, nil
}

// chat calls the provider through the circuit breaker and accumulates
// token usage regardless of outcome.
func (p *Pipeline) chat(ctx context.Context, req *providers.ChatRequest, usage *billing.TokenUsage) (*providers.ChatResult, error) {
	result, err := p.breaker.Execute(func() (*providers.ChatResult, error) {
		return p.client.Chat(ctx, req)
	})
	if result != nil {
		usage.Add(billing.TokenUsage{
			TotalTokens:  result.TotalTokens,
			InputTokens:  result.PromptTokens,
			OutputTokens: result.CompletionTokens,
		})
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decodeResult validates the chat output against the extraction schema
// and decodes it, applying the quantity default for items where the
// model omitted it.
func decodeResult(chatResult *providers.ChatResult) (*prompts.Result, error) {
	if len(chatResult.ParsedJSON) == 0 {
		return nil, fmt.Errorf("no parseable JSON in model output: %s", chatResult.ErrorMessage)
	}
	if err := providers.ValidateStructuredJSON(extractionSchemaRaw, chatResult.ParsedJSON); err != nil {
		return nil, err
	}

	var result prompts.Result
	if err := json.Unmarshal(chatResult.ParsedJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to decode extraction result: %w", err)
	}

	for i := range result.BillItems {
		if result.BillItems[i].ItemQuantity == 0 {
			result.BillItems[i].ItemQuantity = 1.0
		}
	}

	return &result, nil
}
