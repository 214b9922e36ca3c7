package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// ErrInvalidSignature is returned when a request can't be proven to come from Slack.
// Callers never learn which check failed.
var ErrInvalidSignature = errors.New("invalid request signature")

// MalformedRequestError is returned when a body can't be parsed into the variant its content type selects.
type MalformedRequestError struct {
	Reason string
	Err    error
}

func (e *MalformedRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed request: %s: %v", e.Reason, e.Err)
	}
	return "malformed request: " + e.Reason
}

func (e *MalformedRequestError) Unwrap() error { return e.Err }

// OAuthError terminates an installation attempt. Code is safe to show to the end user:
// it is either a fixed message or the error string Slack sent back.
type OAuthError struct {
	Code string
	Err  error
}

func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth error: %s: %v", e.Code, e.Err)
	}
	return "oauth error: " + e.Code
}

func (e *OAuthError) Unwrap() error { return e.Err }

// SlackAPIError is an ok:false envelope from the Web API
type SlackAPIError struct {
	Code    string
	Message string
}

func (e *SlackAPIError) Error() string {
	return fmt.Sprintf("slack api error: %s - %s", e.Code, e.Message)
}

// ConfigurationError is fatal at startup
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// StorageError wraps a persistence backend failure for a single operation
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// InternalError is the catch-all. Its message never reaches the caller.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Message, e.Err)
	}
	return "internal error: " + e.Message
}

func (e *InternalError) Unwrap() error { return e.Err }

// NewOAuthError builds an OAuthError with a user-visible code
func NewOAuthError(code string) *OAuthError {
	return &OAuthError{Code: code}
}

// NewStorageError wraps err unless it is nil
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// StatusCode maps an error from the taxonomy to the HTTP status returned to Slack
func StatusCode(err error) int {
	var (
		malformed *MalformedRequestError
		oauthErr  *OAuthError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.As(err, &malformed), errors.As(err, &oauthErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to the caller for err.
// Internal, storage and upstream API failures collapse to a generic message.
func PublicMessage(err error) string {
	var (
		malformed *MalformedRequestError
		oauthErr  *OAuthError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSignature):
		return ""
	case errors.As(err, &oauthErr):
		return "OAuth error: " + oauthErr.Code
	case errors.As(err, &malformed):
		return "Bad Request"
	default:
		return "Internal Server Error"
	}
}
