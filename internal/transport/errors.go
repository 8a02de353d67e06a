package transport

import (
	"errors"
	"fmt"
)

// The client-side error taxonomy. Every failure an operation can
// surface falls into exactly one of these classes:
//
//   - ValidationError: local, pre-network, user-correctable
//   - AuthError: login rejected or token invalid/expired
//   - ServerError: non-2xx response other than an auth failure
//   - NetworkError: the request could not complete at all
//
// AuthError additionally obliges the caller to tear down the session.

// ValidationError reports a locally rejected request. It never reaches
// the network layer.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// AuthError reports a rejected login or an invalid/expired token.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// ServerError reports a non-2xx response that is not an auth failure,
// carrying the server-supplied message when one was present.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (status %d)", e.StatusCode)
	}
	return e.Message
}

// NetworkError reports a request that could not complete.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsServerError reports whether err is a ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// IsNetworkError reports whether err is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// UserMessage returns the text to surface for err: the classified
// message when present, fallback otherwise.
func UserMessage(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
