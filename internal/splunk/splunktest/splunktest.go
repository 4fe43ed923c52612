// Package splunktest provides helpers for testing code that talks to the
// Splunk REST API through splunk.Client.
package splunktest

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"esctl/internal/log"
	"esctl/internal/splunk"
)

// NewServer starts an HTTP server bound to IPv4-only loopback so tests
// work inside restricted sandboxes that forbid IPv6 listeners.
func NewServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server: %v", err)
	}

	server := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	server.Start()
	t.Cleanup(server.Close)
	return server
}

// NewClient returns a client pointed at the given test server with
// retries disabled.
func NewClient(t *testing.T, serverURL string) *splunk.Client {
	t.Helper()

	client, err := splunk.NewClient(splunk.Config{
		BaseURL: serverURL,
		Token:   "test-token",
	}, log.New(log.Config{Level: log.LevelError}))
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return client
}
