package icloud

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client whose auth and setup endpoints both point
// at the given test server.
func newTestClient(t *testing.T, baseURL string, data *SessionData) *Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(data, nil, logger)
	c.authBase = baseURL
	c.setupBase = baseURL

	return c
}

func TestDo_AppliesStoredCredentials(t *testing.T) {
	var got http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	data := NewSessionData()
	data.SessionID = "sid-1"
	data.SCNT = "scnt-1"
	data.Cookies.add("a=1")
	data.Cookies.add("b=2")

	c := newTestClient(t, srv.URL, data)

	c.mu.Lock()
	resp, err := c.do(context.Background(), http.MethodGet, srv.URL+"/x", nil, func(h http.Header) {
		h.Set("Accept", "application/json")
	})
	c.mu.Unlock()

	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, data.OAuthState, got.Get("X-Apple-OAuth-State"))
	assert.Equal(t, "https://www.icloud.com", got.Get("Origin"))
	assert.Equal(t, "https://www.icloud.com/", got.Get("Referer"))
	assert.Equal(t, "sid-1", got.Get("X-Apple-ID-Session-Id"))
	assert.Equal(t, "scnt-1", got.Get("scnt"))
	assert.Equal(t, "a=1; b=2", got.Get("Cookie"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestDo_AbsorbsHeadersOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("scnt", "scnt-after")
		w.Header().Add("Set-Cookie", "session=abc; Path=/; HttpOnly")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	c.mu.Lock()
	resp, err := c.do(context.Background(), http.MethodGet, srv.URL+"/x", nil, nil)
	c.mu.Unlock()

	require.NoError(t, err)

	defer resp.Body.Close()

	// Non-401 statuses are returned for the caller to interpret, with the
	// session state already advanced.
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	snap := c.Snapshot()
	assert.Equal(t, "scnt-after", snap.SCNT)
	assert.Equal(t, CookieSet{"session": "abc"}, snap.Cookies)
}

func TestDo_UnauthorizedMapsToAuthenticationFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("scnt", "scnt-401")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	c.mu.Lock()
	_, err := c.do(context.Background(), http.MethodGet, srv.URL+"/x", nil, nil)
	c.mu.Unlock()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	// Header absorption still happened before the error was raised.
	assert.Equal(t, "scnt-401", c.Snapshot().SCNT)
}

func TestDo_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.mu.Lock()
	_, err := c.do(ctx, http.MethodGet, srv.URL+"/x", nil, nil)
	c.mu.Unlock()

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	c := newTestClient(t, "http://unused", nil)

	snap := c.Snapshot()
	snap.SessionToken = "mutated"
	snap.Cookies.add("a=1")

	fresh := c.Snapshot()
	assert.Empty(t, fresh.SessionToken)
	assert.Empty(t, fresh.Cookies)
}

func TestServiceURL(t *testing.T) {
	data := NewSessionData()
	data.WebServices["drive"] = ServiceInfo{URL: "https://drive.example"}

	c := newTestClient(t, "http://unused", data)

	url, ok := c.ServiceURL("drive")
	assert.True(t, ok)
	assert.Equal(t, "https://drive.example", url)

	_, ok = c.ServiceURL("mail")
	assert.False(t, ok)
}
