package icloud

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Fixed protocol endpoints.
const (
	authEndpoint  = "https://idmsa.apple.com/appleauth/auth"
	setupEndpoint = "https://setup.icloud.com/setup/ws/1"
)

// Header names the session tracks across requests.
const (
	hdrOAuthState     = "X-Apple-OAuth-State"
	hdrAccountCountry = "X-Apple-ID-Account-Country"
	hdrSessionID      = "X-Apple-ID-Session-Id"
	hdrSessionToken   = "X-Apple-Session-Token"
	hdrSCNT           = "scnt"
	hdrTrustToken     = "X-Apple-TwoSV-Trust-Token"

	// hdrResponseCode is the sign-in disposition header. On a 200 sign-in
	// response it carries a second status code; see Client.Login.
	hdrResponseCode = "X-Apple-I-Rscd"
)

// originHeaders are attached to every request.
var originHeaders = [...][2]string{
	{"Origin", "https://www.icloud.com"},
	{"Referer", "https://www.icloud.com/"},
}

// authClientHeaders are the fixed OAuth client identification headers sent
// on every call to the auth endpoints.
var authClientHeaders = [...][2]string{
	{"X-Apple-OAuth-Client-Id", "d39ba9916b7251055b22c7f910e2ea796ee65e98b2ddecea8f5dde8d9d1a815d"},
	{"X-Apple-OAuth-Client-Type", "firstPartyAuth"},
	{"X-Apple-OAuth-Redirect-URI", "https://www.icloud.com"},
	{"X-Apple-OAuth-Require-Grant-Code", "true"},
	{"X-Apple-OAuth-Response-Mode", "web_message"},
	{"X-Apple-OAuth-Response-Type", "code"},
	{"X-Apple-Widget-Key", "d39ba9916b7251055b22c7f910e2ea796ee65e98b2ddecea8f5dde8d9d1a815d"},
}

// newSessionUID generates the unique id embedded in a fresh session's
// oauth_state. Tests override this for deterministic snapshots.
var newSessionUID = uuid.NewString

// ServiceInfo is a per-service endpoint discovered during authentication.
type ServiceInfo struct {
	URL string `json:"url"`
}

// CookieSet holds session cookies keyed by cookie name. It serializes as a
// sorted array of "name=value" strings so that snapshots are deterministic.
type CookieSet map[string]string

// add inserts a raw Set-Cookie value, stripping attributes after the first
// ";" and overwriting any existing cookie with the same name.
func (s CookieSet) add(raw string) {
	pair, _, _ := strings.Cut(raw, ";")
	pair = strings.TrimSpace(pair)

	if pair == "" {
		return
	}

	name, value, _ := strings.Cut(pair, "=")
	s[name] = value
}

// headerValue joins all cookies into a single Cookie header value.
func (s CookieSet) headerValue() string {
	return strings.Join(s.pairs(), "; ")
}

// pairs returns the sorted "name=value" form of the set.
func (s CookieSet) pairs() []string {
	out := make([]string, 0, len(s))
	for name, value := range s {
		out = append(out, name+"="+value)
	}

	sort.Strings(out)

	return out
}

func (s CookieSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.pairs())
}

func (s *CookieSet) UnmarshalJSON(data []byte) error {
	var pairs []string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}

	out := make(CookieSet, len(pairs))
	for _, p := range pairs {
		name, value, _ := strings.Cut(p, "=")
		out[name] = value
	}

	*s = out

	return nil
}

// SessionData is the resumable session snapshot: every credential field the
// protocol carries between requests, and nothing else. Two clients built
// from equal snapshots behave identically given the same responses.
//
// OAuthState is generated once at creation and never mutated. The optional
// fields are each populated from a specific response header the first time
// it appears and are only ever overwritten by a newer value — never cleared,
// not even when a call fails.
type SessionData struct {
	OAuthState     string                 `json:"oauth_state"`
	SessionID      string                 `json:"session_id,omitempty"`
	SessionToken   string                 `json:"session_token,omitempty"`
	TrustToken     string                 `json:"trust_token,omitempty"`
	SCNT           string                 `json:"scnt,omitempty"`
	AccountCountry string                 `json:"account_country,omitempty"`
	Cookies        CookieSet              `json:"cookies"`
	WebServices    map[string]ServiceInfo `json:"webservices"`
}

// NewSessionData creates a fresh snapshot with a unique oauth_state nonce.
func NewSessionData() *SessionData {
	return &SessionData{
		OAuthState:  "auth-" + newSessionUID(),
		Cookies:     CookieSet{},
		WebServices: map[string]ServiceInfo{},
	}
}

// Clone returns an independent deep copy of the snapshot.
func (d *SessionData) Clone() *SessionData {
	out := *d

	out.Cookies = make(CookieSet, len(d.Cookies))
	for name, value := range d.Cookies {
		out.Cookies[name] = value
	}

	out.WebServices = make(map[string]ServiceInfo, len(d.WebServices))
	for name, svc := range d.WebServices {
		out.WebServices[name] = svc
	}

	return &out
}

// normalize ensures the collection fields are non-nil after decoding an
// older or hand-written snapshot.
func (d *SessionData) normalize() {
	if d.Cookies == nil {
		d.Cookies = CookieSet{}
	}

	if d.WebServices == nil {
		d.WebServices = map[string]ServiceInfo{}
	}
}

// applyTo attaches the stored credential fields to an outgoing request:
// the oauth_state and origin headers always, session id / scnt only when
// present, and a joined Cookie header only when cookies exist.
func (d *SessionData) applyTo(req *http.Request) {
	req.Header.Set(hdrOAuthState, d.OAuthState)

	for _, kv := range originHeaders {
		req.Header.Set(kv[0], kv[1])
	}

	if d.SessionID != "" {
		req.Header.Set(hdrSessionID, d.SessionID)
	}

	if d.SCNT != "" {
		req.Header.Set(hdrSCNT, d.SCNT)
	}

	if len(d.Cookies) > 0 {
		req.Header.Set("Cookie", d.Cookies.headerValue())
	}
}

// absorb folds response headers back into the snapshot. Each tracked field
// is overwritten when its header is present; every Set-Cookie is merged into
// the cookie set. A header value that is not valid UTF-8 is a hard error.
func (d *SessionData) absorb(h http.Header) error {
	fields := []struct {
		header string
		dst    *string
	}{
		{hdrAccountCountry, &d.AccountCountry},
		{hdrSessionID, &d.SessionID},
		{hdrSessionToken, &d.SessionToken},
		{hdrSCNT, &d.SCNT},
		{hdrTrustToken, &d.TrustToken},
	}

	for _, f := range fields {
		v := h.Get(f.header)
		if v == "" {
			continue
		}

		if !utf8.ValidString(v) {
			return fmt.Errorf("icloud: decoding %s header: invalid UTF-8", f.header)
		}

		*f.dst = v
	}

	for _, raw := range h.Values("Set-Cookie") {
		if !utf8.ValidString(raw) {
			return fmt.Errorf("icloud: decoding Set-Cookie header: invalid UTF-8")
		}

		d.Cookies.add(raw)
	}

	return nil
}
