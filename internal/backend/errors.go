package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericMessage is shown when the backend gave no usable message.
const GenericMessage = "Something went wrong. Please try again."

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrReferenceExhausted = errors.New("payment reference is no longer valid")
	ErrUnavailable        = errors.New("backend unavailable")
	ErrNoUser             = errors.New("no user bound to request")
)

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known status codes to sentinels so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusGone:
		return ErrReferenceExhausted
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	}
	return nil
}

// MessageOf returns the backend-provided message carried by err, or fallback
// when there is none.
func MessageOf(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if fallback == "" {
		return GenericMessage
	}
	return fallback
}
