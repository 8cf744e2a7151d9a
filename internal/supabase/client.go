// Package supabase is the client for the managed backend: PostgREST tables,
// object storage, edge functions and the realtime change feed.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

// Config holds client configuration.
type Config struct {
	URL     string
	AnonKey string
	// AccessToken is the signed-in user's JWT. When empty the anon key is
	// sent as the bearer token.
	AccessToken string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client is a Supabase REST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrSyncNotConfigured, "supabase URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New(errors.ErrSyncNotConfigured, "supabase anon key is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, errors.Wrap(errors.ErrConfig, "invalid supabase URL", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
		token:      cfg.AccessToken,
	}, nil
}

// SetAccessToken replaces the user JWT sent with every request.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.token
	}
	return c.anonKey
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("supabase: status %d", e.Status)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout || e.Status >= 500
}

// parseError reads PostgREST ({code,message,details,hint}) and storage
// ({statusCode,error,message}) error bodies.
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}
	if !gjson.ValidBytes(body) {
		e.Message = strings.TrimSpace(string(body))
		return e
	}
	res := gjson.GetManyBytes(body, "code", "message", "details", "hint", "error", "msg")
	e.Code = res[0].String()
	e.Message = res[1].String()
	e.Details = res[2].String()
	e.Hint = res[3].String()
	if e.Code == "" {
		e.Code = res[4].String()
	}
	if e.Message == "" {
		e.Message = res[5].String()
	}
	return e
}

// codeFor maps an HTTP status to the error code surfaced to callers.
func codeFor(status int) errors.ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.ErrSyncAuthFailed
	case status == http.StatusNotFound:
		return errors.ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.ErrRemoteUnavailable
	default:
		return errors.ErrRemoteRejected
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "create request", err)
	}
	c.setHeaders(req)
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalid, "marshal request body", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

// do executes req and decodes a JSON response into out when out is
// non-nil. Non-2xx responses become an *errors.AppError wrapping *Error.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return errors.Wrap(errors.ErrSyncTimeout, req.Method+" "+req.URL.Path, ctxErr)
		}
		return errors.Wrap(errors.ErrRemoteUnavailable, req.Method+" "+req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrRemoteUnavailable, "read response", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := parseError(resp.StatusCode, body)
		return errors.Wrap(codeFor(resp.StatusCode), req.Method+" "+req.URL.Path, apiErr)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(errors.ErrRemoteRejected, "decode response", err)
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
