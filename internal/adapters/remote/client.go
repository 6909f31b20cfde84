// Package remote is the HTTP client of the preference store. It implements
// submission.Store for both the student and the mentor route sets.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/okian/prefrank/pkg/logger"
	"github.com/okian/prefrank/pkg/metrics"
)

const (
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 200 * time.Millisecond
	maxResponseBytes      = 1 << 20

	// IdempotencyHeader carries a key derived from the request payload.
	IdempotencyHeader = "Idempotency-Key"
)

// idempotencyNamespace seeds the SHA-1 UUIDs used as idempotency keys.
var idempotencyNamespace = uuid.MustParse("5b0c7c4e-3f7e-4c35-9d0a-2f1f0e6c2b61")

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the preference store.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	logger         logger.Logger
	maxAttempts    int
	initialBackoff time.Duration
}

// New creates a client for the store at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("remote: invalid base URL %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		logger:         logger.Nop(),
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IdempotencyKey returns the key sent with a mutating request. Identical
// requests always produce the same key.
func IdempotencyKey(method, path string, body []byte) string {
	data := make([]byte, 0, len(method)+len(path)+len(body)+2)
	data = append(data, method...)
	data = append(data, ' ')
	data = append(data, path...)
	data = append(data, '\n')
	data = append(data, body...)
	return uuid.NewSHA1(idempotencyNamespace, data).String()
}

// call describes one logical request. once disables retries for calls that
// are not idempotent.
type call struct {
	op     string
	method string
	path   string
	body   any
	auth   bool
	once   bool
}

// do sends c with retries on transient failures and decodes a 2xx body into
// out when out is non-nil. Every attempt carries the same payload.
func (c *Client) do(ctx context.Context, req call, out any) error {
	var payload []byte
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("remote: encode %s body: %w", req.op, err)
		}
		payload = encoded
	}

	var token string
	if req.auth {
		if c.tokens == nil {
			return fmt.Errorf("remote: %s: %w", req.op, ErrNoToken)
		}
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("remote: %s: %w", req.op, err)
		}
		token = t
	}

	var key string
	if req.method != http.MethodGet {
		key = IdempotencyKey(req.method, req.path, payload)
	}

	var body []byte
	operation := func() error {
		b, err := c.attempt(ctx, req, token, key, payload)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialBackoff
	eb.MaxElapsedTime = 0
	retries := uint64(c.maxAttempts - 1)
	if req.once {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx)
	notify := func(err error, wait time.Duration) {
		metrics.RecordRemoteRetry(req.op)
		c.logger.Warn(ctx, "retrying preference store call",
			logger.String("op", req.op),
			logger.String("path", req.path),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("remote: %s: %w: %w", req.op, ErrMalformedResponse, err)
	}
	return nil
}

// attempt performs a single HTTP exchange. Non-retryable failures are
// wrapped in backoff.Permanent.
func (c *Client) attempt(ctx context.Context, req call, token, key string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("remote: build %s request: %w", req.op, err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		httpReq.Header.Set(IdempotencyHeader, key)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordRemoteRequest(req.op, "error", float64(time.Since(start).Milliseconds()))
		wrapped := fmt.Errorf("remote: %s %s: %w: %w", req.method, req.path, ErrTransport, err)
		if ctx.Err() != nil {
			return nil, backoff.Permanent(wrapped)
		}
		return nil, wrapped
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug(ctx, "failed to close response body", logger.Error(cerr))
		}
	}()
	metrics.RecordRemoteRequest(req.op, strconv.Itoa(resp.StatusCode), float64(time.Since(start).Milliseconds()))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("remote: read %s response: %w: %w", req.op, ErrTransport, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	serr := &StatusError{StatusCode: resp.StatusCode, Method: req.method, Path: req.path}
	_ = json.Unmarshal(body, serr)
	if retryable(resp.StatusCode) {
		return nil, serr
	}
	return nil, backoff.Permanent(serr)
}

// IsTransient reports whether err is worth retrying later as a whole.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport)
}
