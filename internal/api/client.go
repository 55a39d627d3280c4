package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
)

// DefaultBaseURL is the host the SDK targets when no override is configured.
const DefaultBaseURL = "https://api.polygon.io"

// Client provides access to the market data REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	rest *polygonrest.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. An empty baseURL keeps the SDK
// default host.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	next := c.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	rt := &transport{
		next:         next,
		maxRetries:   c.maxRetries,
		retryBackoff: c.retryBackoff,
		logger:       c.logger,
	}
	if baseURL != "" && baseURL != DefaultBaseURL {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			rt.host = u
		} else {
			c.logger.Warn("ignoring invalid rest base url", "url", baseURL)
		}
	}

	hc := *c.httpClient
	hc.Transport = rt
	c.rest = polygonrest.NewWithClient(apiKey, &hc)

	// The SDK installs its own retries, timeout and stderr logger; transport
	// is the only retry policy.
	c.rest.HTTP.
		SetRetryCount(0).
		SetTimeout(c.httpClient.Timeout).
		SetLogger(restyLogger{c.logger})

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client. Its transport is wrapped, not
// replaced.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// restyLogger routes SDK log lines to slog. Request failures are already
// returned to and logged by the caller, so they are kept at debug.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "source", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "source", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "source", "resty")
}
