// Package webhook forwards decoded record batches to an HTTP endpoint as
// JSON POST requests.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/justapithecus/rawzeo/adapter"
	"github.com/justapithecus/rawzeo/iox"
	"github.com/justapithecus/rawzeo/record"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// ErrNoURL is returned by New when Config.URL is empty.
var ErrNoURL = errors.New("webhook adapter requires a URL")

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// SessionID is copied into every batch.
	SessionID string
	// Backoff is the first retry delay (default adapter.InitialBackoff).
	Backoff time.Duration
}

// Batch is the JSON body of one POST.
type Batch struct {
	SessionID string            `json:"session_id,omitempty"`
	Count     int               `json:"count"`
	Records   []record.Envelope `json:"records"`
}

// Adapter publishes record batches via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a webhook adapter from the given config.
// Returns an error if the URL is empty.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = adapter.InitialBackoff
	}

	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SessionHeader carries the session ID on every request so receivers can
// route batches without parsing the body.
const SessionHeader = "X-Rawzeo-Session"

// Publish POSTs the records as one JSON batch. 5xx responses and network
// errors are retried with exponential backoff; 4xx responses fail at once.
func (a *Adapter) Publish(ctx context.Context, records []record.Envelope) error {
	body, err := json.Marshal(Batch{SessionID: a.config.SessionID, Count: len(records), Records: records})
	if err != nil {
		return fmt.Errorf("webhook: marshal batch: %w", err)
	}

	attempts := 0
	err = adapter.Retry(ctx, a.config.Retries, a.config.Backoff, func() error {
		attempts++
		err := a.post(ctx, body)
		if isClientError(err) {
			return backoff.Permanent(err)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("webhook: context canceled: %w", ctx.Err())
	case isClientError(err):
		return fmt.Errorf("webhook: non-retriable error: %w", err)
	default:
		return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, err)
	}
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// post performs a single HTTP POST and returns nil on 2xx.
func (a *Adapter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if a.config.SessionID != "" {
		req.Header.Set(SessionHeader, a.config.SessionID)
	}
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	// Drained so the connection is reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
