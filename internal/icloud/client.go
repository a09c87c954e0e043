package icloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// Doer abstracts the HTTP transport. Defined at the consumer per Go
// convention "accept interfaces, return structs"; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client owns one iCloud session. All protocol operations — login,
// authenticate, second-factor verification, trust, node fetches — are
// serialized behind a single mutex because each mutates credential fields
// the next call depends on. The lock is held for the full
// request/response/header-absorb sequence so no caller can ever build a
// request from stale credentials.
type Client struct {
	mu     sync.Mutex
	http   Doer
	data   *SessionData
	logger *slog.Logger

	// Endpoint bases default to the fixed Apple URLs. Tests point them at
	// local servers.
	authBase  string
	setupBase string
}

// NewClient creates a session client resuming from the given snapshot.
// A nil snapshot starts a fresh session; a nil transport uses
// http.DefaultClient; a nil logger uses slog.Default().
func NewClient(data *SessionData, transport Doer, logger *slog.Logger) *Client {
	if data == nil {
		data = NewSessionData()
	} else {
		data.normalize()
	}

	if transport == nil {
		transport = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:      transport,
		data:      data,
		logger:    logger,
		authBase:  authEndpoint,
		setupBase: setupEndpoint,
	}
}

// Snapshot returns an independent copy of the current session state,
// suitable for persisting and resuming from later.
func (c *Client) Snapshot() *SessionData {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.data.Clone()
}

// ServiceURL reports the base URL discovered for a named web service
// (e.g. "drive") during authentication.
func (c *Client) ServiceURL(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	svc, ok := c.data.WebServices[name]

	return svc.URL, ok
}

// do is the single chokepoint for every outbound call. It builds the
// request, attaches the stored credential fields, runs the caller's
// customize hook, dispatches, and folds the response headers back into the
// session before any status is interpreted — a failed call still advances
// session state (e.g. the first login attempt yields an scnt value even
// when the credentials are wrong).
//
// 401 is always mapped to ErrAuthenticationFailed, after header absorption.
// Every other status is returned for the caller to interpret. Callers must
// hold c.mu and must close the response body.
func (c *Client) do(ctx context.Context, method, url string, body []byte, customize func(http.Header)) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("icloud: creating request: %w", err)
	}

	c.data.applyTo(req)

	if customize != nil {
		customize(req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("icloud: %s %s: %w", method, url, err)
	}

	// Absorb headers before looking at the status. Runs only once a complete
	// response exists, so a canceled call never half-mutates the session.
	if err := c.data.absorb(resp.Header); err != nil {
		resp.Body.Close()
		return nil, err
	}

	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		drainClose(resp.Body)
		return nil, fmt.Errorf("icloud: %s %s: %w", method, url, ErrAuthenticationFailed)
	}

	return resp, nil
}

// drainClose drains and closes a response body so the underlying
// connection can be reused.
func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}
