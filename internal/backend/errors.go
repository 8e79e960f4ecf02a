package backend

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/washline/washsync/internal/auth"
)

var (
	// ErrNetworkUnavailable is returned without attempting the request when
	// the device reports no connectivity.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrAuthTokenMissing is returned before any call when the session has
	// no bearer token.
	ErrAuthTokenMissing = auth.ErrTokenMissing
	// ErrSubscriptionExpired maps HTTP 403 on any endpoint: the
	// organization's subscription has lapsed.
	ErrSubscriptionExpired = errors.New("organization subscription expired")
	// ErrNotFound maps HTTP 404. Some endpoints use it as a regular answer,
	// e.g. "no salary setting for this pair yet".
	ErrNotFound = errors.New("not found")
)

// ValidationError maps HTTP 400. Message is the backend's text, meant to be
// shown to the user as is (duplicate car on site, invalid price, ...).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "request rejected"
	}
	return fmt.Sprintf("request rejected: %s", e.Message)
}

// StatusError is any other non-2xx answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}
