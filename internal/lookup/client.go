package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/cedulabot/core/config"
	"github.com/m3rciful/cedulabot/core/logger"
	"github.com/m3rciful/cedulabot/core/telegram/netutil"
)

const (
	contentType = "application/x-www-form-urlencoded; charset=UTF-8"
	// maxBodyBytes caps how much of a response is read into memory.
	maxBodyBytes = 8 << 20
)

// ConnectionError reports a lookup that produced no usable response:
// timeout, DNS or network failure, or a body that could not be read.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *ConnectionError) Timeout() bool {
	return netutil.Classify(e.Err) == netutil.KindTimeout
}

// Response is the raw answer of the lookup API.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Observer receives one call per lookup; outcome is "ok" or an error kind.
type Observer func(outcome string, took time.Duration)

// Options configures a Client.
type Options struct {
	URL           string
	Auth          string
	TransactionID string
	DocumentType  string
	Timeout       time.Duration
	// HTTPClient overrides the default client; its Timeout is left untouched.
	HTTPClient *http.Client
	Observer   Observer
}

// OptionsFromConfig maps the lookup section of the configuration.
func OptionsFromConfig(cfg coreconfig.LookupConfig) Options {
	return Options{
		URL:           cfg.URL,
		Auth:          cfg.Auth,
		TransactionID: cfg.TransactionID,
		DocumentType:  cfg.DocumentType,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Client issues one POST per lookup. It never retries and never caches.
type Client struct {
	opts Options
	http *http.Client
}

// NewClient builds a Client. A zero timeout selects the configured default.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("lookup: url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = coreconfig.DefaultLookupTimeoutSeconds * time.Second
	}
	if opts.TransactionID == "" {
		opts.TransactionID = coreconfig.DefaultTransactionID
	}
	if opts.DocumentType == "" {
		opts.DocumentType = coreconfig.DefaultDocumentType
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{opts: opts, http: hc}, nil
}

// NewRequest builds a request carrying the client's transaction id and document type.
func (c *Client) NewRequest(document string) (Request, error) {
	return NewRequest(document, c.opts.TransactionID, c.opts.DocumentType)
}

// Lookup performs the POST. Any transport failure is a *ConnectionError;
// every HTTP status, including 4xx/5xx, is a successful Response.
func (c *Client) Lookup(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	attrs := []slog.Attr{slog.String("doc", logger.MaskDigits(req.Document()))}
	start := time.Now()

	resp, err := c.do(ctx, req)
	took := logger.Took(start)
	if err != nil {
		kind := netutil.Classify(err)
		c.observe(kind, took)
		logger.LogEvent(ctx, logger.Lookup, slog.LevelWarn, "lookup.fail",
			append(attrs,
				slog.String("status", "fail"),
				slog.String("error_kind", kind),
				slog.String("err", err.Error()),
				slog.Duration("duration", took),
			)...,
		)
		return nil, &ConnectionError{Err: err}
	}

	c.observe("ok", took)
	logger.LogEvent(ctx, logger.Lookup, slog.LevelInfo, "lookup.done",
		append(attrs,
			slog.String("status", "ok"),
			slog.Int("http_code", resp.StatusCode),
			slog.Int("body_len", len(resp.Body)),
			slog.Duration("duration", took),
		)...,
	)
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, strings.NewReader(req.Form().Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", c.opts.Auth)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       string(body),
	}, nil
}

func (c *Client) observe(outcome string, took time.Duration) {
	if c.opts.Observer != nil {
		c.opts.Observer(outcome, took)
	}
}
