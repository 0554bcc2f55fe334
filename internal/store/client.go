// Package store talks to the remote employee list over HTTP. It hides the
// list service's verb-override write convention so callers only see List,
// Create, Update, and Delete.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/roster/internal/employee"
)

const (
	acceptHeader      = "application/json; odata.metadata=minimal"
	contentTypeHeader = "application/json; charset=utf-8"

	// maxErrorBody caps how much of a failed response is kept for messages.
	maxErrorBody = 64 << 10
)

// Config locates the list collection.
type Config struct {
	BaseURL    string
	Collection string
}

// Validate reports whether the location is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidConfig)
	}
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: base url must be an absolute http(s) url", ErrInvalidConfig)
	}
	return nil
}

// Client issues the four list calls. It never retries.
type Client struct {
	collectionURL string
	http          *http.Client
	auth          Authorizer
	logger        *zap.Logger
	requestID     func() string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAuthorizer sets the credentials applied to every request.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Client) {
		if a != nil {
			c.auth = a
		}
	}
}

// WithTimeout bounds each call. It applies to a copy of the current
// http.Client, so a client set earlier through WithHTTPClient is kept.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestIDs allows tests to control X-Request-ID values.
func WithRequestIDs(next func() string) Option {
	return func(c *Client) {
		if next != nil {
			c.requestID = next
		}
	}
}

// New prepares a client for the collection described by cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		collectionURL: collectionURL(cfg),
		http:          &http.Client{Timeout: 30 * time.Second},
		auth:          NoAuth(),
		logger:        zap.NewNop(),
		requestID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func collectionURL(cfg Config) string {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	title := url.PathEscape(strings.TrimSpace(cfg.Collection))
	return base + "/_api/web/lists/GetByTitle('" + title + "')"
}

func (c *Client) itemsURL() string {
	return c.collectionURL + "/items"
}

func (c *Client) itemURL(id int) string {
	return c.collectionURL + "/items(" + strconv.Itoa(id) + ")"
}

// List returns every item in the collection.
func (c *Client) List(ctx context.Context) ([]employee.Record, error) {
	body, err := c.do(ctx, OpList, http.MethodGet, c.itemsURL(), nil, nil)
	if err != nil {
		return nil, err
	}
	var env employee.ItemEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &TransportError{Op: OpList, Err: fmt.Errorf("decode response: %w", err)}
	}
	records := make([]employee.Record, 0, len(env.Value))
	for _, item := range env.Value {
		rec, err := item.Record()
		if err != nil {
			return nil, &TransportError{Op: OpList, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Create adds a new item built from p.
func (c *Client) Create(ctx context.Context, p employee.Payload) error {
	_, err := c.do(ctx, OpCreate, http.MethodPost, c.itemsURL(), p, nil)
	return err
}

// Update merges p into item id, overwriting whatever revision the store holds.
func (c *Client) Update(ctx context.Context, id int, p employee.Payload) error {
	headers := map[string]string{
		"IF-MATCH":      "*",
		"X-HTTP-Method": "MERGE",
	}
	_, err := c.do(ctx, OpUpdate, http.MethodPost, c.itemURL(id), p, headers)
	return err
}

// Delete removes item id regardless of its current revision.
func (c *Client) Delete(ctx context.Context, id int) error {
	headers := map[string]string{
		"IF-MATCH":      "*",
		"X-HTTP-Method": "DELETE",
	}
	_, err := c.do(ctx, OpDelete, http.MethodPost, c.itemURL(id), nil, headers)
	return err
}

func (c *Client) do(ctx context.Context, op Op, method, target string, payload any, headers map[string]string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	reqID := c.requestID()
	req.Header.Set("Accept", acceptHeader)
	if payload != nil {
		req.Header.Set("Content-Type", contentTypeHeader)
	}
	req.Header.Set("X-Request-ID", reqID)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if err := c.auth.Authorize(req); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("store call failed",
			zap.String("op", string(op)),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	fields := []zap.Field{
		zap.String("op", string(op)),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		c.logger.Warn("store call rejected", append(fields, zap.ByteString("body", body))...)
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	if readErr != nil {
		c.logger.Warn("store response unreadable", append(fields, zap.Error(readErr))...)
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", readErr)}
	}
	c.logger.Debug("store call", fields...)
	return body, nil
}
