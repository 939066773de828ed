package model

import (
	"fmt"
	"net/http"
)

// Error kinds returned to clients in the "type" field. Each kind maps to a
// fixed HTTP status.
const (
	ErrTypeInvalidRequest = "invalid_request"
	ErrTypeAuth           = "auth_error"
	ErrTypeInactiveKey    = "inactive_key"
	ErrTypeRateLimited    = "rate_limited"
	ErrTypeTimeout        = "timeout"
	ErrTypeUpstream       = "upstream_error"
	ErrTypeInternal       = "internal_error"
)

// Error is the wire shape of an error payload, compatible with the OpenAI
// error envelope.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
	// RawError preserves the underlying error for logs. Never serialized.
	RawError error `json:"-"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorWithStatusCode pairs an error payload with the HTTP status to send.
type ErrorWithStatusCode struct {
	Error      Error `json:"error"`
	StatusCode int   `json:"status_code"`
}

// StatusForType returns the HTTP status a given error kind maps to.
func StatusForType(errType string) int {
	switch errType {
	case ErrTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeInactiveKey:
		return http.StatusForbidden
	case ErrTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds an ErrorWithStatusCode of the given kind; the status is
// derived from the kind.
func NewError(errType, message string, raw error) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error: Error{
			Message:  message,
			Type:     errType,
			RawError: raw,
		},
		StatusCode: StatusForType(errType),
	}
}

// InvalidError is shorthand for a 400 invalid-request error.
func InvalidError(message string) *ErrorWithStatusCode {
	return NewError(ErrTypeInvalidRequest, message, nil)
}

// InternalError wraps an unexpected failure as a 500.
func InternalError(err error) *ErrorWithStatusCode {
	return NewError(ErrTypeInternal, err.Error(), err)
}
