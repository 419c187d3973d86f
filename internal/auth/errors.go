package auth

import (
	"fmt"
	"net/http"

	"github.com/spec-kit/member-session/internal/domain"
)

// TokenErrorKind distinguishes token rejections for logging and metrics.
type TokenErrorKind string

const (
	KindMalformed         TokenErrorKind = "malformed"
	KindSignatureMismatch TokenErrorKind = "signature_mismatch"
	KindExpired           TokenErrorKind = "expired"
	KindIssuerMismatch    TokenErrorKind = "issuer_mismatch"
	KindMissingPayload    TokenErrorKind = "missing_payload"
)

// ConfigurationError means tokens cannot be issued with the current key material.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "auth configuration: " + e.Reason
}

func (e *ConfigurationError) HTTPStatus() int   { return http.StatusInternalServerError }
func (e *ConfigurationError) ErrorCode() string { return "CONFIGURATION_ERROR" }

// InvalidTokenError is returned for every rejected token. Callers treat all
// kinds as "not authenticated"; the kind is for observability.
type InvalidTokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("invalid token (%s)", e.Kind)
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

func (e *InvalidTokenError) HTTPStatus() int   { return http.StatusUnauthorized }
func (e *InvalidTokenError) ErrorCode() string { return "INVALID_TOKEN" }

// SessionStoreWriteError aborts a login when a session record write fails.
type SessionStoreWriteError struct {
	Key   domain.SessionKey
	Field string
	Err   error
}

func (e *SessionStoreWriteError) Error() string {
	return fmt.Sprintf("save %s token for session %s: %v", e.Field, e.Key, e.Err)
}

func (e *SessionStoreWriteError) Unwrap() error { return e.Err }

func (e *SessionStoreWriteError) HTTPStatus() int   { return http.StatusServiceUnavailable }
func (e *SessionStoreWriteError) ErrorCode() string { return "SESSION_STORE_UNAVAILABLE" }
