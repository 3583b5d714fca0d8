package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized     = errors.New("not authorized")
	ErrForbidden        = errors.New("access forbidden")
	ErrNotFound         = errors.New("not found")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrMissingIdentity  = errors.New("identity id not found in token")
	ErrOrphanedIdentity = errors.New("identity created without a profile")
	ErrLoanRejected     = errors.New("error creating loan, book may not be available")
	ErrValidation       = errors.New("invalid input")

	// Form hints only; the resource service has the final word.
	ErrBookUnavailable = errors.New("book is not available")
	ErrUserInactive    = errors.New("user is not active")
)

// Service names used in errors, logs and metrics.
const (
	ServiceResource = "resource"
	ServiceIdentity = "identity"
)

// APIError is a non-2xx answer from one of the backends.
type APIError struct {
	Service string
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s %s: %d %s", e.Service, e.Method, e.Path, e.Status, e.Message)
}

// Unwrap lets errors.Is match the sentinels for the common statuses.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// errorBody covers both backends: the identity service answers with message
// or error, the resource service with detail.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

// serverMessage pulls the most specific human-readable message out of an
// error body, or "" when none is present.
func serverMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if m := strings.TrimSpace(eb.Message); m != "" {
		return m
	}
	if m := strings.TrimSpace(eb.Error); m != "" {
		return m
	}
	var detail string
	if err := json.Unmarshal(eb.Detail, &detail); err == nil {
		return strings.TrimSpace(detail)
	}
	return ""
}

// Describe reduces err to the single line shown to the operator.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	switch {
	case errors.Is(err, ErrLoanRejected):
		return "Error creating loan. Book may not be available."
	case errors.Is(err, ErrMissingIdentity):
		return "User was registered but no identity id came back; the profile was not created."
	case errors.Is(err, ErrNotAuthenticated):
		return "You are not signed in. Run 'library login' first."
	}

	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		switch ae.Status {
		case http.StatusUnauthorized:
			return "Session expired. Please sign in again."
		case http.StatusForbidden:
			return "You do not have permission to do that."
		case http.StatusNotFound:
			return "Not found."
		}
		return fmt.Sprintf("%s service request failed (%d)", ae.Service, ae.Status)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return "Cannot reach the server. Check your connection."
	}
	return err.Error()
}
