// Package pipeline orchestrates per-page bill extraction: it drives the
// LLM over each prepared page, carries forward previously seen items,
// and assembles the validated response.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/billscan/billscan/internal/billing"
	"github.com/billscan/billscan/internal/document"
	"github.com/billscan/billscan/internal/providers"
)

// Config holds pipeline tunables.
type Config struct {
	MaxAttempts     int           // LLM attempts per page
	RetryDelay      time.Duration // Base delay between attempts
	CallTimeout     time.Duration // Per-call timeout
	Temperature     float64
	MaxTokens       int
	AmountTolerance float64 // Relative tolerance for validation and dedup
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 120 * time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.AmountTolerance <= 0 {
		c.AmountTolerance = billing.DefaultAmountTolerance
	}
	return c
}

// Pipeline runs bill extraction for one provider.
type Pipeline struct {
	client  providers.LLMClient
	breaker *gobreaker.CircuitBreaker[*providers.ChatResult]
	cfg     Config
	logger  *slog.Logger
}

// New creates a pipeline around an LLM client. The circuit breaker trips
// when the provider fails persistently, so a dead upstream aborts a
// document quickly instead of burning retries on every remaining page.
func New(client providers.LLMClient, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:        "llm-" + client.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Schema/parse issues are the model misbehaving, not the
			// transport failing; they don't count against the breaker.
			return err == nil || !providers.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Pipeline{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*providers.ChatResult](settings),
		cfg:     cfg,
		logger:  logger,
	}
}

// Run extracts line items from all pages sequentially, threading the
// list of already-seen items into each subsequent page's prompt. Pages
// that fail extraction are recorded in FailedPages; the run only errors
// when every page fails or a fatal condition aborts the document.
func (p *Pipeline) Run(ctx context.Context, pages []document.Page) (*billing.ExtractionResponse, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	var (
		usage     billing.TokenUsage
		extracted []billing.PageItems
		failed    []int
		seenItems []string
	)

	for _, page := range pages {
		result, err := p.extractPage(ctx, page, seenItems, &usage)
		if err != nil {
			if fatal(ctx, err) {
				p.logger.Error("aborting document", "page", page.PageNo, "error", err)
				return nil, fmt.Errorf("extraction aborted on page %d: %w", page.PageNo, err)
			}
			p.logger.Warn("page extraction failed", "page", page.PageNo, "error", err)
			failed = append(failed, page.PageNo)
			continue
		}

		pageItems := billing.PageItems{
			PageNo:    strconv.Itoa(page.PageNo),
			PageType:  billing.NormalizePageType(result.PageType),
			BillItems: result.BillItems,
		}
		extracted = append(extracted, pageItems)

		for _, item := range result.BillItems {
			seenItems = append(seenItems, item.ItemName)
		}

		p.logger.Info("page extracted",
			"page", page.PageNo,
			"page_type", pageItems.PageType,
			"items", len(result.BillItems))
	}

	if len(extracted) == 0 {
		return nil, fmt.Errorf("all %d pages failed extraction", len(pages))
	}

	validator := billing.NewValidator(p.cfg.AmountTolerance)
	validated, count := validator.Validate(extracted)
	for _, w := range validator.Warnings() {
		p.logger.Warn("validation", "detail", w)
	}

	return &billing.ExtractionResponse{
		IsSuccess:  true,
		TokenUsage: usage,
		Data: billing.ExtractionData{
			PagewiseLineItems: validated,
			TotalItemCount:    count,
		},
		FailedPages: failed,
	}, nil
}

// fatal reports conditions where continuing with the remaining pages
// cannot succeed: cancelled context, bad credentials, open breaker.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if providers.IsAuthError(err) {
		return true
	}
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
