// Package api defines the endpoint abstraction shared by the HTTP
// server and the CLI, plus the client and output helpers the CLI uses
// to talk to a running server.
package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is an HTTP endpoint that can also expose itself as a CLI
// command calling the running server.
type Endpoint interface {
	// Route returns the HTTP method, path pattern, and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the handler needs the server to be
	// fully initialized (provider registry loaded).
	RequiresInit() bool

	// Command returns a cobra command that calls this endpoint over
	// HTTP. getServerURL is resolved at runtime, after flag parsing.
	Command(getServerURL func() string) *cobra.Command
}
