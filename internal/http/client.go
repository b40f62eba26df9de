package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"swapline/pkg/core"
)

const (
	headerUserAgent   = "User-Agent"
	headerContentType = "Content-Type"
	headerAPIKey      = "X-MBX-APIKEY"

	formContentType = "application/x-www-form-urlencoded"
)

// Client issues venue calls and classifies their outcome. A 200 response
// yields the raw body; anything else is a *core.ExchangeError.
type Client struct {
	client   *resty.Client
	exchange string
	apiKey   string
	logger   zerolog.Logger
	metrics  *Metrics
	mu       sync.RWMutex
	closed   bool
}

type Config struct {
	Exchange  string        `validate:"required"`
	BaseURL   string        `validate:"required,url"`
	Timeout   time.Duration `validate:"min=1ms"`
	UserAgent string
	APIKey    string
	Logger    zerolog.Logger
	Metrics   *Metrics
}

func NewClient(config *Config) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = core.DefaultUserAgent
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(0)
	client.SetAllowMethodDeletePayload(true)
	client.SetHeader(headerUserAgent, userAgent)

	logger := config.Logger

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("method", req.Method).
			Str("url", redactSignature(req.URL)).
			Msg("http request")
		return nil
	})

	return &Client{
		client:   client,
		exchange: config.Exchange,
		apiKey:   config.APIKey,
		logger:   logger,
		metrics:  config.Metrics,
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Get calls endpoint with an optional, already-encoded query.
func (c *Client) Get(ctx context.Context, endpoint, query string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, withQuery(endpoint, query), "", false, false)
}

// Post, Put and Delete are the unauthenticated session-key verbs. body, when
// set, is sent form-encoded; the API key header identifies the key owner.
func (c *Client) Post(ctx context.Context, endpoint, body string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, endpoint, body, false, true)
}

func (c *Client) Put(ctx context.Context, endpoint, body string) ([]byte, error) {
	return c.do(ctx, http.MethodPut, endpoint, body, false, true)
}

func (c *Client) Delete(ctx context.Context, endpoint, body string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, endpoint, body, false, true)
}

// GetSigned, PostSigned and DeleteSigned place the signed query in the URL
// for every verb. Venues of this API family reject body-signed payloads.
func (c *Client) GetSigned(ctx context.Context, endpoint, signedQuery string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, withQuery(endpoint, signedQuery), "", true, true)
}

func (c *Client) PostSigned(ctx context.Context, endpoint, signedQuery string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, withQuery(endpoint, signedQuery), "", true, true)
}

func (c *Client) DeleteSigned(ctx context.Context, endpoint, signedQuery string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, withQuery(endpoint, signedQuery), "", true, true)
}

func (c *Client) do(ctx context.Context, method, target, body string, signed, withKey bool) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.NewTransportError(c.exchange, core.ErrClientClosed)
	}

	req := c.client.R().SetContext(ctx)
	if withKey {
		req.SetHeader(headerAPIKey, c.apiKey)
	}
	if body != "" && !signed {
		req.SetHeader(headerContentType, formContentType)
		req.SetBody(body)
	}

	endpoint := pathOf(target)
	start := time.Now()

	var resp *resty.Response
	var err error

	switch method {
	case http.MethodGet:
		resp, err = req.Get(target)
	case http.MethodPost:
		resp, err = req.Post(target)
	case http.MethodPut:
		resp, err = req.Put(target)
	case http.MethodDelete:
		resp, err = req.Delete(target)
	default:
		return nil, fmt.Errorf("unsupported http method: %s", method)
	}

	if err != nil {
		c.metrics.observe(c.exchange, method, endpoint, 0, time.Since(start))
		c.logger.Error().Err(err).
			Str("method", method).
			Str("endpoint", endpoint).
			Msg("http request failed")
		return nil, core.NewTransportError(c.exchange, err)
	}

	status := resp.StatusCode()
	data := resp.Bytes()
	c.metrics.observe(c.exchange, method, endpoint, status, time.Since(start))

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", status).
		Int("size", len(data)).
		Msg("http response")

	if status != http.StatusOK {
		return nil, core.NewAPIError(c.exchange, status, data)
	}
	return data, nil
}

func withQuery(endpoint, query string) string {
	if query == "" {
		return endpoint
	}
	return endpoint + "?" + query
}

func pathOf(target string) string {
	path, _, _ := strings.Cut(target, "?")
	return path
}
