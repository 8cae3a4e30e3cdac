// Package client implements the HTTP contract of the conversation backend.
// It carries the session token, applies client-side rate limiting, and maps
// responses onto the store's error taxonomy. Policy (notifications, retries,
// optimistic updates) lives in the conversation package, never here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"webmail/config"
	"webmail/utils"
)

// Client is a thin JSON/form HTTP client for the conversation backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *utils.Logger
}

// New creates a backend client from the loaded configuration.
func New(cfg *config.Config, logger *utils.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.Backend.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Backend.RequestsPerSec), cfg.Backend.Burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
		token:   cfg.Session.Token,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		},
		limiter: limiter,
		logger:  logger.WithField("component", "client"),
	}
}

// SetTransport swaps the underlying transport. Tests mount the in-process
// fake backend here.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Put performs an HTTP PUT request with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// serverError is the business-error payload the backend attaches to non-2xx
// responses.
type serverError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return utils.TransportError("request cancelled while rate limited", err)
		}
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("%s %s", method, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.TransportError(fmt.Sprintf("executing %s %s", method, path), err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return utils.TransportError(fmt.Sprintf("reading response of %s %s", method, path), readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(method, path, resp.StatusCode, respBody)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}

	return nil
}

// statusError converts a non-2xx response into the error taxonomy: a decoded
// business error when the backend reports one, a plain not-found for 404,
// else a generic server error carrying the status.
func (c *Client) statusError(method, path string, status int, body []byte) error {
	var decoded serverError
	if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
		c.logger.Warn("%s %s: server error %d: %s", method, path, status, decoded.Error)
		return utils.ServerError(status, decoded.Error)
	}
	if status == http.StatusNotFound {
		return utils.NotFoundError(fmt.Sprintf("%s %s", method, path), nil)
	}
	return utils.ServerError(status, fmt.Sprintf("unexpected status %d on %s %s", status, method, path))
}
