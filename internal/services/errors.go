package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/store"
)

var (
	ErrProviderNotConfigured = errors.New("provider is not configured")
	ErrSessionExpired        = errors.New("connect session expired, please try again")
	ErrStateMismatch         = errors.New("state does not match the connect session")
	ErrUnauthenticated       = errors.New("authentication required")
	ErrAccountNotFound       = errors.New("connected account not found")
	ErrHandshakeExists       = errors.New("handshake already exists")
	ErrInvalidScope          = errors.New("invalid refresh scope")
)

// ErrorKind groups connect failures by how the caller should react.
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "configuration"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindProtocol        ErrorKind = "protocol"
	KindUpstream        ErrorKind = "upstream"
	KindRateLimited     ErrorKind = "rate_limited"
	KindPersistence     ErrorKind = "persistence"
	KindNotFound        ErrorKind = "not_found"
)

// Stage is the step of the connect flow an error happened in.
type Stage string

const (
	StageInitiate Stage = "initiate"
	StageCallback Stage = "callback"
	StageExchange Stage = "exchange"
	StagePersist  Stage = "persist"
	StageManage   Stage = "manage"
)

// Error codes surfaced to clients and in redirect flags.
const (
	CodeProviderNotConfigured = "provider_not_configured"
	CodeUnauthorized          = "unauthorized"
	CodeSessionExpired        = "session_expired"
	CodeStateMismatch         = "state_mismatch"
	CodeAccessDenied          = "access_denied"
	CodeMissingCode           = "missing_code"
	CodeCallbackNotConfirmed  = "callback_not_confirmed"
	CodeAccountTypeNotAllowed = "account_type_not_allowed"
	CodeNoBusinessAccount     = "no_business_account"
	CodeProviderRejected      = "provider_rejected"
	CodeProviderUnavailable   = "provider_unavailable"
	CodeRateLimitExceeded     = "rate_limit_exceeded"
	CodePersistenceFailed     = "persistence_failed"
	CodeAccountNotFound       = "account_not_found"
)

// ConnectError is a classified failure of the connect or account management flow.
type ConnectError struct {
	Provider models.Provider
	Stage    Stage
	Kind     ErrorKind
	Code     string
	Message  string
	Err      error

	// RedirectTo is the post-connect path of the handshake, when one was found.
	RedirectTo string
}

func (e *ConnectError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s %s: %s", e.Provider.Slug(), e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status.
func (e *ConnectError) HTTPStatus() int {
	switch e.Kind {
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindProtocol:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// newConnectError classifies err. An existing ConnectError is returned as is.
func newConnectError(provider models.Provider, stage Stage, err error) *ConnectError {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}

	kind, code := classify(err)
	return &ConnectError{
		Provider: provider,
		Stage:    stage,
		Kind:     kind,
		Code:     code,
		Message:  err.Error(),
		Err:      err,
	}
}

func classify(err error) (ErrorKind, string) {
	var pe *auth.ProviderError

	switch {
	case errors.Is(err, ErrProviderNotConfigured):
		return KindConfiguration, CodeProviderNotConfigured
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated, CodeUnauthorized
	case errors.Is(err, ErrSessionExpired), errors.Is(err, auth.ErrHandshakeMismatch):
		return KindProtocol, CodeSessionExpired
	case errors.Is(err, ErrStateMismatch):
		return KindProtocol, CodeStateMismatch
	case errors.Is(err, auth.ErrConsentDenied):
		return KindProtocol, CodeAccessDenied
	case errors.Is(err, auth.ErrMissingCode):
		return KindProtocol, CodeMissingCode
	case errors.Is(err, auth.ErrCallbackNotConfirmed):
		return KindProtocol, CodeCallbackNotConfirmed
	case errors.Is(err, auth.ErrAccountTypeNotAllowed):
		return KindProtocol, CodeAccountTypeNotAllowed
	case errors.Is(err, auth.ErrNoBusinessAccount):
		return KindProtocol, CodeNoBusinessAccount
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, store.ErrRecordNotFound):
		return KindNotFound, CodeAccountNotFound
	case errors.As(err, &pe):
		if pe.IsUpstream() {
			return KindUpstream, CodeProviderUnavailable
		}
		return KindProtocol, CodeProviderRejected
	default:
		return KindPersistence, CodePersistenceFailed
	}
}
