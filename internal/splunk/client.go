// Package splunk implements the REST transport shared by all Splunk ES
// entity services.
package splunk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"esctl/internal/errors"
	"esctl/internal/log"
)

// Markers the API uses in 404 bodies for genuinely absent objects, as
// opposed to bad paths.
var notFoundMarkers = []string{"Object not found", "Could not find object"}

// Config holds the connection settings for a Splunk ES server.
type Config struct {
	// BaseURL is the server root, e.g. https://splunk.example.com:8089
	BaseURL string

	// Token is the bearer token used for authentication.
	Token string

	// Timeout bounds a single HTTP round trip. Zero means 30s.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts for transient
	// failures (network errors and 5xx responses).
	MaxRetries uint64

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Client issues requests against the Splunk REST API. All responses are
// requested with output_mode=json and decoded into caller-supplied types.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries uint64
	logger     *log.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NewConfigInvalidError("server URL is required")
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		maxRetries: cfg.MaxRetries,
		logger:     logger.With("component", "splunk"),
	}, nil
}

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post performs a POST request with a JSON body and decodes the response
// into out. The store uses POST for both create and update.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

// Put performs a PUT request with a JSON body and decodes the response
// into out.
func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPut, path, query, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) buildURL(path string, query url.Values) string {
	params := url.Values{}
	for k, vs := range query {
		for _, v := range vs {
			if v != "" {
				params.Add(k, v)
			}
		}
	}
	params.Set("output_mode", "json")

	return fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(path, "/"), params.Encode())
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reqBody []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeAPIRequest, "marshal request body", err)
		}
		reqBody = data
	}

	fullURL := c.buildURL(path, query)
	c.logger.Debug("request", "method", method, "path", path)

	operation := func() error {
		return c.roundTrip(ctx, method, fullURL, reqBody, out)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, fullURL string, reqBody []byte, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return backoff.Permanent(errors.Wrap(errors.ErrCodeAPIRequest, "create request", err))
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures are retryable.
		return errors.Wrap(errors.ErrCodeConnection, "send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConnection, "read response", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(errors.Wrap(errors.ErrCodeAPIResponse, "unmarshal response", err))
		}
	}

	return nil
}

func (c *Client) checkStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return backoff.Permanent(errors.NewAuthError(
			fmt.Errorf("server returned status %d", status)))

	case status == http.StatusNotFound:
		text := string(body)
		for _, marker := range notFoundMarkers {
			if strings.Contains(text, marker) {
				return backoff.Permanent(errors.New(errors.ErrCodeNotFound,
					"object not found on the server"))
			}
		}
		return backoff.Permanent(errors.New(errors.ErrCodeAPIResponse,
			fmt.Sprintf("splunk api returned error 404 with message %s", truncate(text, 512))))

	case status >= 500:
		// Transient server errors are retryable.
		return errors.New(errors.ErrCodeAPIResponse,
			fmt.Sprintf("splunk api returned error %d with message %s", status, truncate(string(body), 512)))

	default:
		return backoff.Permanent(errors.New(errors.ErrCodeAPIResponse,
			fmt.Sprintf("splunk api returned error %d with message %s", status, truncate(string(body), 512))))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
