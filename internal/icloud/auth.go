package icloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// State is the authentication state derived from the most recent
// accountLogin exchange. It is never cached — call Authenticate to learn
// the current state.
type State int

const (
	Unauthenticated State = iota
	NeedsSecondFactor
	Authenticated
)

func (s State) String() string {
	switch s {
	case NeedsSecondFactor:
		return "Needs 2FA"
	case Authenticated:
		return "Authenticated"
	default:
		return "Unauthenticated"
	}
}

// authHeaders returns a customize hook that sets the content negotiation
// headers plus the fixed OAuth client identification set.
func authHeaders(contentType, accept string) func(http.Header) {
	return func(h http.Header) {
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}

		h.Set("Accept", accept)

		for _, kv := range authClientHeaders {
			h.Set(kv[0], kv[1])
		}
	}
}

type signinRequest struct {
	AccountName string   `json:"accountName"`
	Password    string   `json:"password"`
	RememberMe  bool     `json:"rememberMe"`
	TrustTokens []string `json:"trustTokens"`
}

type accountLoginRequest struct {
	AccountCountryCode string `json:"accountCountryCode"`
	DsWebAuthToken     string `json:"dsWebAuthToken"`
	ExtendedLogin      bool   `json:"extended_login"`
	TrustToken         string `json:"trustToken"`
}

type accountLoginResponse struct {
	WebServices          map[string]ServiceInfo `json:"webservices"`
	HSAChallengeRequired bool                   `json:"hsaChallengeRequired"`
	HSATrustedBrowser    bool                   `json:"hsaTrustedBrowser"`
}

type securityCodeRequest struct {
	SecurityCode struct {
		Code string `json:"code"`
	} `json:"securityCode"`
}

// Login signs in with the given credentials. On success the session holds a
// fresh session token and the account country, ready for Authenticate.
//
// Apple signals "account needs a second factor" by answering 200 with the
// X-Apple-I-Rscd header set to 409 — that is the expected branch and counts
// as success. A 200 whose disposition header decodes to any other code, or
// any non-200 status, is ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("signing in", slog.String("username", username))

	body, err := json.Marshal(signinRequest{
		AccountName: username,
		Password:    password,
		RememberMe:  true,
		TrustTokens: []string{},
	})
	if err != nil {
		return fmt.Errorf("icloud: encoding signin request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.authBase+"/signin?isRememberMeEnable=true",
		body, authHeaders("application/json", "*/*"))
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("icloud: signin returned HTTP %d: %w", resp.StatusCode, ErrInvalidCredentials)
	}

	if rscd := resp.Header.Get(hdrResponseCode); rscd != "" {
		code, err := strconv.Atoi(rscd)
		if err != nil {
			return fmt.Errorf("icloud: decoding %s header %q: %w", hdrResponseCode, rscd, err)
		}

		if code != http.StatusConflict {
			return fmt.Errorf("icloud: signin disposition %d: %w", code, ErrInvalidCredentials)
		}
	}

	return nil
}

// Authenticate validates the stored session against the setup endpoint and
// derives the current authentication state. It requires the account country
// and session token populated by a prior Login; if either is missing it
// fails fast with a MissingItemError.
//
// A non-200 answer (other than 401, which the pipeline maps to
// ErrAuthenticationFailed) means the stored session is stale or absent —
// that is Unauthenticated, a valid outcome, not an error. On 200 the
// response body is parsed for the discovered web services and the
// second-factor challenge flags.
func (c *Client) Authenticate(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data.AccountCountry == "" {
		return Unauthenticated, &MissingItemError{Field: hdrAccountCountry}
	}

	if c.data.SessionToken == "" {
		return Unauthenticated, &MissingItemError{Field: hdrSessionToken}
	}

	c.logger.Info("authenticating session")

	body, err := json.Marshal(accountLoginRequest{
		AccountCountryCode: c.data.AccountCountry,
		DsWebAuthToken:     c.data.SessionToken,
		ExtendedLogin:      true,
		TrustToken:         c.data.TrustToken,
	})
	if err != nil {
		return Unauthenticated, fmt.Errorf("icloud: encoding account login request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.setupBase+"/accountLogin",
		body, authHeaders("application/json", "*/*"))
	if err != nil {
		return Unauthenticated, err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("stored session rejected", slog.Int("status", resp.StatusCode))
		return Unauthenticated, nil
	}

	var info accountLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Unauthenticated, fmt.Errorf("icloud: decoding account login response: %w", err)
	}

	if drive, ok := info.WebServices["drivews"]; ok && drive.URL != "" {
		c.data.WebServices["drive"] = ServiceInfo{URL: drive.URL}
	}

	if info.HSAChallengeRequired && !info.HSATrustedBrowser {
		return NeedsSecondFactor, nil
	}

	return Authenticated, nil
}

// VerifySecurityCode submits a one-time second-factor code. Success is a
// 204 No Content; anything else is ErrAuthenticationFailed.
func (c *Client) VerifySecurityCode(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("verifying second-factor code")

	var req securityCodeRequest
	req.SecurityCode.Code = code

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("icloud: encoding security code request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.authBase+"/verify/trusteddevice/securitycode",
		body, authHeaders("application/json", "application/json"))
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("icloud: security code verification returned HTTP %d: %w",
			resp.StatusCode, ErrAuthenticationFailed)
	}

	return nil
}

// TrustSession asks Apple to trust this device so future logins skip the
// second-factor step. Success is a 204 No Content; the trust token arrives
// as a response header and is absorbed into the session by the pipeline.
func (c *Client) TrustSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("requesting device trust")

	resp, err := c.do(ctx, http.MethodGet, c.authBase+"/2sv/trust",
		nil, authHeaders("", "*/*"))
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("icloud: trust request returned HTTP %d: %w", resp.StatusCode, ErrTrustFailed)
	}

	return nil
}
