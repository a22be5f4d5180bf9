// Package console implements the terminal client's server access layer: a
// cookie-bearing HTTP adapter for the admin API, the session gate in front
// of it and the client-side preference file.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// ErrUnauthorized reports that the server rejected the session.
var ErrUnauthorized = errors.New("console: unauthorized")

// ErrRequestFailed collapses every non-auth transport and server failure
// into one identity. The wrapped message carries the server's error text
// for display.
var ErrRequestFailed = errors.New("request failed")

// Client performs JSON calls against one gateway server. The session
// cookie set by login lives in the client's jar, so every later call
// rides the same session.
type Client struct {
	baseURL        string
	http           *http.Client
	onUnauthorized func()
}

// NewClient builds a client for the given server base URL.
func NewClient(baseURL string) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("console: empty server url")
	}
	parsed, errParse := url.Parse(trimmed)
	if errParse != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("console: invalid server url %q", baseURL)
	}
	jar, errJar := cookiejar.New(nil)
	if errJar != nil {
		return nil, fmt.Errorf("console: cookie jar: %w", errJar)
	}
	return &Client{baseURL: trimmed, http: &http.Client{Jar: jar}}, nil
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// OnUnauthorized registers the hook invoked whenever the server answers
// with status 401, regardless of which call saw it.
func (c *Client) OnUnauthorized(fn func()) { c.onUnauthorized = fn }

// Call performs one JSON request. A 401 answer fires the unauthorized
// hook and returns ErrUnauthorized; every other failure wraps
// ErrRequestFailed. Successful responses without a body yield a nil
// payload.
func (c *Client) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, errEncode := json.Marshal(body)
		if errEncode != nil {
			return nil, fmt.Errorf("%w: encode body: %v", ErrRequestFailed, errEncode)
		}
		reader = bytes.NewReader(payload)
	}

	req, errBuild := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if errBuild != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRequestFailed, errBuild)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("%w: server unreachable", ErrRequestFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, ErrUnauthorized
	}

	data, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRequestFailed, errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, serverMessage(resp.StatusCode, data))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// serverMessage extracts the error field the admin API sets on failures,
// falling back to the HTTP status text.
func serverMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if errDecode := json.Unmarshal(body, &payload); errDecode == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.ToLower(http.StatusText(status))
}
