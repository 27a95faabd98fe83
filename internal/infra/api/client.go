package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/walletsync/internal/wallet/metrics"
)

// Config holds the wallet REST backend settings.
type Config struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// Client talks to the wallet REST backend: token registries, holdings, NFT
// listings and account summaries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	log        *slog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	retry := DefaultRetryConfig
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialDelay > 0 {
		retry.InitialDelay = cfg.InitialDelay
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: retry,
		log:   log,
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// getJSON issues a GET with retry and decodes the body into out. endpoint is
// the metric label for the route.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	return c.do(ctx, endpoint, http.MethodGet, path, query, nil, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, query url.Values, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, endpoint, http.MethodPost, path, query, data, out)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body []byte, out any) error {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return callWithRetry(ctx, c.retry, func(ctx context.Context) error {
		start := time.Now()
		err := c.once(ctx, method, target, body, out)
		metrics.BackendLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		metrics.BackendRequests.WithLabelValues(endpoint, statusLabel(err)).Inc()
		if err != nil {
			c.log.Debug("Backend request failed", "endpoint", endpoint, "error", err)
		}
		return err
	})
}

func (c *Client) once(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if se, ok := err.(*StatusError); ok {
		return strconv.Itoa(se.Code)
	}
	return "error"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// cursor normalizes a JSON offset that may be a number, a string or null.
func cursor(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return s
}
