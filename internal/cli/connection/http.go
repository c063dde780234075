package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/stockgate/internal/infra/buildinfo"
	"github.com/yndnr/stockgate/internal/infra/tlsroots"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	apiKey  string
	bearer  string
	caFile  string
	timeout time.Duration
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithAPIKey sends raw ("<key_id>:<secret>") in the X-API-Key header.
func WithAPIKey(raw string) Option {
	return func(c *HTTPClient) { c.apiKey = raw }
}

// WithBearer sends token as a bearer credential. It takes precedence over an
// API key.
func WithBearer(token string) Option {
	return func(c *HTTPClient) { c.bearer = token }
}

// WithCAFile trusts a private CA in addition to the system roots.
func WithCAFile(path string) Option {
	return func(c *HTTPClient) { c.caFile = path }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.timeout = d }
}

// NewHTTPClient creates a client for server. A server without a scheme is
// reached over plain HTTP.
func NewHTTPClient(server string, opts ...Option) (*HTTPClient, error) {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{baseURL: baseURL, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.caFile != "" {
		tlsCfg, err := tlsroots.ClientConfig(tlsroots.ClientOptions{CAFile: c.caFile})
		if err != nil {
			return nil, fmt.Errorf("load ca file: %w", err)
		}
		transport.TLSClientConfig = tlsCfg
	}
	c.client = &http.Client{Timeout: c.timeout, Transport: transport}
	return c, nil
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body. A nil body sends none.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// GetJSON performs a GET and decodes the response into out.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return ParseResponse(resp, out)
}

// PostJSON performs a POST and decodes the response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, in, out any) error {
	resp, err := c.Post(ctx, path, in)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return ParseResponse(resp, out)
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	switch {
	case c.bearer != "":
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	case c.apiKey != "":
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent("cli"))
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`

	// RetryAfterSeconds is set on 429 responses.
	RetryAfterSeconds *int64 `json:"retry_after_seconds,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.RequestID != "" {
		msg += " (request_id " + e.RequestID + ")"
	}
	return msg
}

// ParseResponse decodes a JSON response body into target and closes it.
// Status codes of 400 and above return an *APIError.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Code = ""
		}
		return apiErr
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
