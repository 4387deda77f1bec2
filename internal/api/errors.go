package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotAuthenticated is returned locally when an authenticated call is made
// without a token. It classifies the same as a 401 from the server.
var ErrNotAuthenticated = errors.New("api: not authenticated")

// APIError is a non-2xx response from the service. Detail carries the
// server's `detail` field when present.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Detail)
	}
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// NetworkError means the request never produced a response: the server was
// unreachable, the connection dropped or the request timed out.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: %s %s: no response: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrorKind is the user-facing failure taxonomy.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindServer
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	default:
		return "other"
	}
}

// Kind classifies err. Errors that did not come from this package are KindOther.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return KindAuth
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusBadRequest, apiErr.Status == http.StatusUnprocessableEntity:
			return KindValidation
		case apiErr.Status == http.StatusUnauthorized:
			return KindAuth
		case apiErr.Status == http.StatusNotFound:
			return KindNotFound
		case apiErr.Status >= 500:
			return KindServer
		}
	}
	return KindOther
}

// StatusCode returns the HTTP status carried by err, or 0 when there was none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return http.StatusUnauthorized
	}
	return 0
}

// IsNetworkError reports whether err means no response was received.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsRetryable reports whether repeating the call could succeed: network
// failures and 5xx responses. Client errors are final.
func IsRetryable(err error) bool {
	switch Kind(err) {
	case KindNetwork, KindServer:
		return true
	}
	return false
}

// newAPIError decodes a FastAPI-style error body. `detail` is either a string
// or a list of validation entries with a `msg` field.
func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, Status: status}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		e.Detail = strings.TrimSpace(truncate(string(body), 200))
		return e
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		e.Detail = s
		return e
	}
	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, en := range entries {
			if en.Msg != "" {
				msgs = append(msgs, en.Msg)
			}
		}
		e.Detail = strings.Join(msgs, "; ")
		return e
	}
	e.Detail = string(payload.Detail)
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
