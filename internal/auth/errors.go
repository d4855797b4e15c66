package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/danielkropka/social-flow-sub001/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Connect protocol errors
	ErrConsentDenied         = errors.New("user denied authorization")
	ErrMissingCode           = errors.New("callback is missing the authorization code or verifier")
	ErrCallbackNotConfirmed  = errors.New("provider did not confirm the callback URL")
	ErrHandshakeMismatch     = errors.New("callback does not match the pending handshake")
	ErrAccountTypeNotAllowed = errors.New("account type is not allowed")
	ErrNoBusinessAccount     = errors.New("no page with an Instagram business account")
)

const maxErrorBody = 512

// ProviderError is a failed call to a provider endpoint.
type ProviderError struct {
	Provider   models.Provider
	Op         string
	StatusCode int    // 0 when no response was received
	Body       string // truncated upstream body
	Code       string // provider error code, if any
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider.Slug(), e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" (%s)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UpstreamBody returns the truncated provider response body carried by err,
// or "" when err did not come from a provider response.
func UpstreamBody(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Body
	}
	return ""
}

// IsUpstream reports whether the provider was unreachable or failed on its
// side, as opposed to rejecting the request.
func (e *ProviderError) IsUpstream() bool {
	if e.StatusCode >= http.StatusInternalServerError {
		return true
	}
	return e.StatusCode == 0 && e.Code == ""
}

// IsAuthFailure reports whether the provider rejected the credentials.
func (e *ProviderError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AccountTypeError rejects a profile whose account type cannot publish.
type AccountTypeError struct {
	AccountType string
}

func (e *AccountTypeError) Error() string {
	return fmt.Sprintf("account type %q is not allowed, switch to a business or creator account",
		e.AccountType)
}

func (e *AccountTypeError) Unwrap() error {
	return ErrAccountTypeNotAllowed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
