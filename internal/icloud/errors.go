// Package icloud implements the iCloud session-authentication protocol and
// a read-only client for the iCloud Drive resource tree. A Client owns the
// mutable session state (cookies, tokens, continuation headers) and funnels
// every outbound call through one pipeline that keeps that state current.
package icloud

import (
	"errors"
	"fmt"
)

// Sentinel errors for protocol outcomes.
// Use errors.Is(err, icloud.ErrInvalidCredentials) to check.
var (
	ErrInvalidCredentials   = errors.New("icloud: invalid credentials")
	ErrAuthenticationFailed = errors.New("icloud: authentication failed")
	ErrTrustFailed          = errors.New("icloud: trust request rejected")
	ErrInvalidNodeType      = errors.New("icloud: invalid drive node type")
	ErrMissingCacheItem     = errors.New("icloud: missing cached session field")
)

// MissingItemError reports that a session field required by a later
// authentication step was never populated. It signals "re-authenticate from
// login", not a bug — the caller should prompt for credentials again.
type MissingItemError struct {
	Field string
}

func (e *MissingItemError) Error() string {
	return fmt.Sprintf("icloud: missing cached session field %q", e.Field)
}

func (e *MissingItemError) Unwrap() error {
	return ErrMissingCacheItem
}
