// Package api is a typed client for the personal-color diagnosis service.
// Every call takes a context; authenticated calls carry the bearer token
// through an oauth2 transport.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// FeedbackTimeout bounds feedback calls, which the service answers quickly.
	FeedbackTimeout time.Duration
	// HTTPClient is the unauthenticated base client. Its Transport is reused
	// underneath the bearer-token transport. Tests inject httptest clients here.
	HTTPClient *http.Client
}

// Client talks to the diagnosis service.
type Client struct {
	baseURL         string
	timeout         time.Duration
	feedbackTimeout time.Duration
	base            *http.Client

	mu     sync.RWMutex
	token  string
	authed *http.Client
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base url is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.FeedbackTimeout <= 0 {
		opts.FeedbackTimeout = 10 * time.Second
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: opts.Timeout}
	}
	c := &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		timeout:         opts.Timeout,
		feedbackTimeout: opts.FeedbackTimeout,
		base:            base,
	}
	c.SetToken(opts.Token)
	return c, nil
}

// SetToken replaces the bearer token. An empty token signs the client out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	if token == "" {
		c.authed = nil
		return
	}
	baseTransport := c.base.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	c.authed = &http.Client{
		Timeout: c.base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   baseTransport,
		},
	}
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// getJSON issues an authenticated GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out, true)
}

// sendJSON issues an authenticated request with a JSON body.
func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out, true)
}

// sendForm issues a request with a form-encoded body.
func (c *Client) sendForm(ctx context.Context, method, path string, form url.Values, out any, authed bool) error {
	return c.do(ctx, method, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out, authed)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any, authed bool) error {
	hc := c.base
	if authed {
		c.mu.RLock()
		hc = c.authed
		c.mu.RUnlock()
		if hc == nil {
			return ErrNotAuthenticated
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("api: %s %s: %w", method, path, context.Canceled)
		}
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}
