package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelcraft/internal/logging"
	"reelcraft/internal/services"
)

const (
	defaultTimeout  = 600 * time.Second
	userIDHeader    = "x_user_id"
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 64 * 1024
)

// Credentials is the identity attached to outbound requests.
type Credentials struct {
	Token  string
	UserID string
}

// TokenSource supplies the current session credentials. ok is false when no
// session exists.
type TokenSource interface {
	Credentials() (Credentials, bool)
}

// Request describes one call relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// JSON is marshalled as the body with Content-Type application/json.
	JSON any
	// Form is sent as multipart/form-data; it wins over JSON.
	Form   *Form
	Header http.Header
}

// Envelope is a successful response body.
type Envelope struct {
	StatusCode int
	Raw        json.RawMessage
	fields     map[string]json.RawMessage
}

// Decode unmarshals the full response body into v.
func (e *Envelope) Decode(v any) error {
	if e == nil || len(e.Raw) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Has reports whether the top-level object carries key.
func (e *Envelope) Has(key string) bool {
	if e == nil {
		return false
	}
	_, ok := e.fields[key]
	return ok
}

// Field returns the raw value stored under key.
func (e *Envelope) Field(key string) (json.RawMessage, bool) {
	if e == nil {
		return nil, false
	}
	raw, ok := e.fields[key]
	return raw, ok
}

// Client wraps one service base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	userAgent  string
	logger     *slog.Logger
	newID      func() string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTokenSource attaches session credentials to every request.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(agent)
	}
}

// WithLogger routes request diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.NewNop(),
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "transport")
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do issues req and returns the decoded envelope, or a *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := c.endpoint(req.Path, req.Query)

	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		buf, ct, err := req.Form.encode()
		if err != nil {
			return nil, &Error{Kind: KindTransport, Method: method, Path: req.Path, Message: err.Error(), Err: err}
		}
		body, contentType = buf, ct
	case req.JSON != nil:
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Method: method, Path: req.Path, Message: "encode request body", Err: err}
		}
		body, contentType = bytes.NewReader(encoded), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: method, Path: req.Path, Message: "build request", Err: err}
	}
	for key, values := range req.Header {
		// The multipart boundary is owned by the form writer.
		if req.Form != nil && strings.EqualFold(key, "Content-Type") {
			continue
		}
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	c.decorate(ctx, httpReq)

	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Debug("request failed",
			logging.String("method", method),
			logging.String("path", req.Path),
			logging.Error(err),
		)
		return nil, &Error{Kind: KindTransport, Method: method, Path: req.Path, Message: "cannot reach server: " + rootCause(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: method, Path: req.Path, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}
	logger.Debug("request completed",
		logging.String("method", method),
		logging.String("path", req.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	return interpret(method, req.Path, resp.StatusCode, raw)
}

// Probe issues a GET and discards the body. It validates that a resource is
// available without buffering it.
func (c *Client) Probe(ctx context.Context, path string, query url.Values) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return &Error{Kind: KindTransport, Method: http.MethodGet, Path: path, Message: "build request", Err: err}
	}
	c.decorate(ctx, httpReq)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Kind: KindTransport, Method: http.MethodGet, Path: path, Message: "cannot reach server: " + rootCause(err), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_, err := interpret(http.MethodGet, path, resp.StatusCode, raw)
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Download streams an absolute locator into w and returns the byte count.
func (c *Client) Download(ctx context.Context, locator string, w io.Writer) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return 0, &Error{Kind: KindTransport, Method: http.MethodGet, Path: locator, Message: "build request", Err: err}
	}
	c.decorate(ctx, httpReq)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &Error{Kind: KindTransport, Method: http.MethodGet, Path: locator, Message: "cannot reach server: " + rootCause(err), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_, err := interpret(http.MethodGet, locator, resp.StatusCode, raw)
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", locator, err)
	}
	return n, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	endpoint := c.baseURL
	if path = strings.TrimSpace(path); path != "" {
		endpoint += "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Client) decorate(ctx context.Context, req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	rid, ok := services.RequestIDFromContext(ctx)
	if !ok {
		rid = c.newID()
	}
	req.Header.Set(requestIDHeader, rid)
	if c.tokens == nil {
		return
	}
	creds, ok := c.tokens.Credentials()
	if !ok {
		return
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.UserID != "" {
		// The service reads the literal underscore header name, which
		// Header.Set would canonicalize to X_user_id.
		req.Header[userIDHeader] = []string{creds.UserID}
	}
}

type errorBody struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func interpret(method, path string, status int, raw []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	parsed := json.Unmarshal(raw, &fields) == nil

	var eb errorBody
	if parsed {
		_ = json.Unmarshal(raw, &eb)
	}
	message := strings.TrimSpace(eb.Message)
	if message == "" {
		message = detailMessage(eb.Detail)
	}

	failed := status < 200 || status >= 300 || strings.EqualFold(strings.TrimSpace(eb.Status), "error")
	if !failed {
		return &Envelope{StatusCode: status, Raw: json.RawMessage(raw), fields: fields}, nil
	}

	if message != "" {
		return nil, &Error{Kind: KindApplication, StatusCode: status, Message: message, Method: method, Path: path}
	}
	if status >= 200 && status < 300 {
		return nil, &Error{Kind: KindApplication, StatusCode: status, Message: fmt.Sprintf("request failed with status %d", status), Method: method, Path: path}
	}
	return nil, &Error{
		Kind:       KindTransport,
		StatusCode: status,
		Message:    fmt.Sprintf("request failed with status %d", status),
		Method:     method,
		Path:       path,
	}
}

// detailMessage renders a "detail" field: strings verbatim, structured
// validation payloads as compact JSON.
func detailMessage(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed)
	}
	return compact.String()
}

func rootCause(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
