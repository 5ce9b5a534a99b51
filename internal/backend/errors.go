package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized indicates the bearer token was rejected.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("backend: not found")
	// ErrMalformedResponse indicates a response body could not be interpreted.
	ErrMalformedResponse = errors.New("backend: malformed response")
)

// NetworkError wraps a transport level failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError carries the messages of a 400 or 422 response.
type ValidationError struct {
	Status   int
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("backend: validation failed (%d)", e.Status)
	}
	return "backend: validation failed: " + strings.Join(e.Messages, "; ")
}

// StatusError is any other non-2xx response.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("backend: %s: status %d: %s", e.Op, e.Status, e.Message)
}

// Is lets errors.Is match ErrUnauthorized and ErrNotFound by status.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// ErrorKind classifies err for metrics: network, unauthorized, not_found,
// validation, malformed or status.
func ErrorKind(err error) string {
	var netErr *NetworkError
	var valErr *ValidationError
	switch {
	case errors.As(err, &netErr):
		return "network"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &valErr):
		return "validation"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	}
	return "status"
}

// IsUnauthorized reports whether err means the session token is no longer valid.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func statusError(method, path string, status int, body []byte) error {
	messages := errorMessages(body)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Status: status, Messages: messages}
	default:
		return &StatusError{Op: method + " " + path, Status: status, Message: strings.Join(messages, "; ")}
	}
}

// errorMessages reads {"message": string | []string, "error": string}.
func errorMessages(body []byte) []string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil && single != "" {
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(payload.Message, &many); err == nil && len(many) > 0 {
		return many
	}
	if payload.Error != "" {
		return []string{payload.Error}
	}
	return nil
}
