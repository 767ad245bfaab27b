package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/billscan/billscan/internal/config"
	"github.com/billscan/billscan/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the billscan server",
	Long: `Start the billscan HTTP server.

The server provides:
  - POST /extract-bill-data - Extract line items from a bill document
  - GET  /health            - Basic server health check
  - GET  /status            - Configured providers and pipeline status
  - GET  /metrics           - Prometheus metrics

Examples:
  billscan serve                    # Start on default port 8080
  billscan serve --port 3000        # Start on custom port
  billscan serve --host 127.0.0.1   # Bind to localhost only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		configMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		configMgr.WatchConfig()

		cfg := configMgr.Get()
		host := cfg.Server.Host
		port := cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: configMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
