package appwrite

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mmcdole/playtally/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
	userAgent      = "playtally/1.0"
)

// Options configures a Client
type Options struct {
	Endpoint   string // e.g. https://cloud.appwrite.io/v1
	Project    string
	APIKey     string
	Database   string
	Collection string
	Field      string // document attribute holding the play count
	Timeout    time.Duration
}

// Client implements domain.DocumentStore against an Appwrite databases collection
type Client struct {
	baseURL    string
	project    string
	apiKey     string
	database   string
	collection string
	field      string
	httpClient *http.Client
	logger     *slog.Logger

	retryDelay time.Duration
}

// NewClient creates a new Appwrite REST client
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.Endpoint, "/"),
		project:    opts.Project,
		apiKey:     opts.APIKey,
		database:   opts.Database,
		collection: opts.Collection,
		field:      opts.Field,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		retryDelay: baseRetryDelay,
	}
}

// updateRequest is the body of a document update
type updateRequest struct {
	Data map[string]int `json:"data"`
}

// SetPlayCount overwrites the play count attribute of document itemID
func (c *Client) SetPlayCount(ctx context.Context, itemID string, count int) error {
	body, err := json.Marshal(updateRequest{Data: map[string]int{c.field: count}})
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	_, err = c.doRequest(ctx, http.MethodPatch, c.documentPath(itemID), body)
	return err
}

// GetPlayCount reads the play count attribute of document itemID.
// A document without the attribute reads as zero.
func (c *Client) GetPlayCount(ctx context.Context, itemID string) (int, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.documentPath(itemID), nil)
	if err != nil {
		return 0, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	raw, ok := doc[c.field]
	if !ok || string(raw) == "null" {
		return 0, nil
	}

	var count int
	if err := json.Unmarshal(raw, &count); err != nil {
		return 0, fmt.Errorf("field %s is not an integer: %w", c.field, err)
	}
	return count, nil
}

func (c *Client) documentPath(itemID string) string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents/%s",
		url.PathEscape(c.database), url.PathEscape(c.collection), url.PathEscape(itemID))
}

// doRequest performs an authenticated HTTP request to the Appwrite API.
// Includes retry logic with exponential backoff for 5xx server errors.
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Appwrite-Project", c.project)
		if c.apiKey != "" {
			req.Header.Set("X-Appwrite-Key", c.apiKey)
		}
		req.Header.Set("User-Agent", userAgent)

		c.logger.Debug("appwrite request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("appwrite request failed", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, domain.ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrDocumentNotFound
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			lastErr = fmt.Errorf("server error: %d - %s", resp.StatusCode, string(body))
			c.logger.Warn("appwrite server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			c.logger.Error("appwrite request error", "status", resp.StatusCode, "body", string(body))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	c.logger.Error("appwrite request failed after retries", "error", lastErr, "path", path)
	return nil, lastErr
}
