package main

import (
	"github.com/billscan/billscan/internal/api"
	"github.com/billscan/billscan/internal/config"
	"github.com/billscan/billscan/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// The endpoint registry derives both the server routes and these
	// CLI commands; pipeline config is only used server-side.
	reg := api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{Pipeline: config.DefaultConfig().Pipeline}) {
		reg.Register(ep)
	}

	apiCmd := reg.BuildCommands(getServerURL)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	rootCmd.AddCommand(apiCmd)
}
