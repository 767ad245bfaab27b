package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/billscan/billscan/internal/api"
	"github.com/billscan/billscan/internal/billing"
	"github.com/billscan/billscan/internal/config"
	"github.com/billscan/billscan/internal/document"
	"github.com/billscan/billscan/internal/metrics"
	"github.com/billscan/billscan/internal/pipeline"
	"github.com/billscan/billscan/internal/svcctx"
)

// ExtractRequest is the request body for bill extraction.
type ExtractRequest struct {
	Document string `json:"document"`
}

// ExtractEndpoint handles POST /extract-bill-data.
type ExtractEndpoint struct {
	Pipeline config.PipelineCfg

	semOnce sync.Once
	sem     chan struct{}
}

// NewExtractEndpoint creates the extraction endpoint.
func NewExtractEndpoint(cfg config.PipelineCfg) *ExtractEndpoint {
	return &ExtractEndpoint{Pipeline: cfg}
}

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/extract-bill-data", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

// semaphore bounds concurrent document extractions. Requests beyond the
// limit are rejected with 503 rather than queued, so callers can retry
// against a less loaded instance.
func (e *ExtractEndpoint) semaphore() chan struct{} {
	e.semOnce.Do(func() {
		limit := e.Pipeline.MaxConcurrentDocuments
		if limit <= 0 {
			limit = 8
		}
		e.sem = make(chan struct{}, limit)
	})
	return e.sem
}

func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Reject bad URLs before consuming a slot or touching the network.
	if _, err := document.ValidateURL(req.Document); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sem := e.semaphore()
	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	default:
		writeError(w, http.StatusServiceUnavailable, "server is at capacity, retry later")
		return
	}

	registry := svcctx.RegistryFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "provider registry not initialized")
		return
	}

	providerName := e.Pipeline.Provider
	if providerName == "" {
		providerName = "gemini"
	}
	client, err := registry.GetLLM(providerName)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "llm provider "+providerName+" not configured")
		return
	}

	logger := svcctx.LoggerFrom(r.Context())
	m := svcctx.MetricsFrom(r.Context())
	if m != nil {
		m.InFlightInc()
		defer m.InFlightDec()
	}
	start := time.Now()

	fetcher := document.NewFetcher(
		time.Duration(e.Pipeline.FetchTimeoutSeconds)*time.Second,
		int64(e.Pipeline.MaxDocumentMB)<<20,
	)
	data, format, err := fetcher.Fetch(r.Context(), req.Document)
	if err != nil {
		logger.Warn("document fetch failed", "url", req.Document, "error", err)
		e.writeFailure(w, m, err, time.Since(start))
		return
	}

	renderer := document.NewRenderer(e.Pipeline.RenderDPI)
	pages, err := renderer.Render(r.Context(), data, format)
	if err != nil {
		logger.Warn("document render failed", "format", format, "error", err)
		e.writeFailure(w, m, err, time.Since(start))
		return
	}

	p := pipeline.New(client, pipeline.Config{
		MaxAttempts:     e.Pipeline.MaxAttempts,
		RetryDelay:      time.Duration(e.Pipeline.RetrySeconds) * time.Second,
		CallTimeout:     time.Duration(e.Pipeline.CallTimeoutSeconds) * time.Second,
		Temperature:     e.Pipeline.Temperature,
		MaxTokens:       e.Pipeline.MaxTokens,
		AmountTolerance: e.Pipeline.AmountTolerance,
	}, logger)

	resp, err := p.Run(r.Context(), pages)
	if err != nil {
		logger.Error("extraction failed", "url", req.Document, "error", err)
		e.writeFailure(w, m, err, time.Since(start))
		return
	}

	status := "ok"
	if len(resp.FailedPages) > 0 {
		status = "partial"
	}
	if m != nil {
		m.RecordDocument(status, len(pages)-len(resp.FailedPages), len(resp.FailedPages), time.Since(start))
		m.RecordTokenUsage(client.Name(), resp.TokenUsage.InputTokens, resp.TokenUsage.OutputTokens)
	}
	logger.Info("document extracted",
		"pages", len(pages),
		"failed_pages", len(resp.FailedPages),
		"items", resp.Data.TotalItemCount,
		"tokens", resp.TokenUsage.TotalTokens,
		"duration", time.Since(start))

	writeJSON(w, http.StatusOK, resp)
}

// writeFailure maps an extraction error to the error response.
// Document problems are the caller's fault (400); everything else is 500.
func (e *ExtractEndpoint) writeFailure(w http.ResponseWriter, m *metrics.Metrics, err error, elapsed time.Duration) {
	status := http.StatusInternalServerError
	var docErr *document.Error
	if errors.As(err, &docErr) {
		status = http.StatusBadRequest
	}
	if m != nil {
		m.RecordDocument("failed", 0, 0, elapsed)
	}
	writeError(w, status, err.Error())
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <document-url>",
		Short: "Extract line items from a hospital bill",
		Long: `Extract line items from a hospital bill document.

The document is fetched by URL, rendered page by page, and each page is
analyzed for billed line items. Supports PDF, PNG, and JPEG documents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp billing.ExtractionResponse
			if err := client.Post(cmd.Context(), "/extract-bill-data", ExtractRequest{
				Document: args[0],
			}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
