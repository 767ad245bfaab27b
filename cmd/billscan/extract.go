package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/billscan/billscan/internal/api"
	"github.com/billscan/billscan/internal/config"
	"github.com/billscan/billscan/internal/document"
	"github.com/billscan/billscan/internal/pipeline"
	"github.com/billscan/billscan/internal/providers"
)

var extractProvider string

var extractCmd = &cobra.Command{
	Use:   "extract <file-or-url>",
	Short: "Extract line items from a bill without a running server",
	Long: `Run the extraction pipeline directly against a local file or URL.

Unlike 'billscan api extract', this does not require a running server;
the document is processed in-process using the configured provider.

Examples:
  billscan extract ./bill.pdf
  billscan extract https://host/bill.pdf --provider groq`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))

		configMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := configMgr.Get()

		registry := providers.NewRegistryFromConfig(cfg.ToProviderRegistryConfig())
		registry.SetLogger(logger)

		providerName := cfg.Pipeline.Provider
		if extractProvider != "" {
			providerName = extractProvider
		}
		client, err := registry.GetLLM(providerName)
		if err != nil {
			return fmt.Errorf("llm provider %q not configured: %w", providerName, err)
		}

		data, format, err := loadDocument(ctx, args[0], cfg.Pipeline)
		if err != nil {
			return err
		}

		renderer := document.NewRenderer(cfg.Pipeline.RenderDPI)
		pages, err := renderer.Render(ctx, data, format)
		if err != nil {
			return err
		}

		p := pipeline.New(client, pipeline.Config{
			MaxAttempts:     cfg.Pipeline.MaxAttempts,
			RetryDelay:      time.Duration(cfg.Pipeline.RetrySeconds) * time.Second,
			CallTimeout:     time.Duration(cfg.Pipeline.CallTimeoutSeconds) * time.Second,
			Temperature:     cfg.Pipeline.Temperature,
			MaxTokens:       cfg.Pipeline.MaxTokens,
			AmountTolerance: cfg.Pipeline.AmountTolerance,
		}, logger)

		resp, err := p.Run(ctx, pages)
		if err != nil {
			return err
		}
		return api.Output(resp)
	},
}

// loadDocument reads a local file or downloads a URL and sniffs its format.
func loadDocument(ctx context.Context, src string, cfg config.PipelineCfg) ([]byte, document.Format, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		fetcher := document.NewFetcher(
			time.Duration(cfg.FetchTimeoutSeconds)*time.Second,
			int64(cfg.MaxDocumentMB)<<20,
		)
		return fetcher.Fetch(ctx, src)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", src, err)
	}
	format, err := document.DetectFormat(data)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

func init() {
	extractCmd.Flags().StringVar(&extractProvider, "provider", "", "LLM provider to use (default from config)")

	rootCmd.AddCommand(extractCmd)
}
