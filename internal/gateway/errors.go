package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/fortify/ferrors"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

// RequestFailedError is returned for any non-2xx response other than 401.
type RequestFailedError struct {
	Status  int
	Message string
}

func (e *RequestFailedError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, domain.ErrRequestFailed) succeed.
func (e *RequestFailedError) Is(target error) bool {
	return target == domain.ErrRequestFailed
}

// transportError marks a failure below HTTP: dial, DNS, reset, timeout.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// statusError carries a response whose status is worth retrying for an
// idempotent request. It never leaves the package.
type statusError struct {
	resp *response
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.resp.status)
}

func networkUnavailable(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrNetworkUnavailable, cause)
}

// classify maps a failure without a response. Only transport failures, an
// open circuit and deadlines mean the server is out of reach; a caller
// cancellation is returned as is.
func classify(err error) error {
	var te *transportError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &te),
		errors.Is(err, ferrors.ErrCircuitOpen),
		errors.Is(err, context.DeadlineExceeded):
		return networkUnavailable(err)
	}
	return err
}

// errorBody covers both {"message": "..."} and {"error": {"message": "..."}}
// as well as a bare {"error": "..."}.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// requestFailed builds the error for a non-2xx response, preferring the
// server supplied message.
func requestFailed(status int, body []byte) *RequestFailedError {
	return &RequestFailedError{Status: status, Message: errorMessage(status, body)}
}

func errorMessage(status int, body []byte) string {
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if msg := strings.TrimSpace(eb.Message); msg != "" {
			return msg
		}
		if len(eb.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(eb.Error, &nested) == nil && strings.TrimSpace(nested.Message) != "" {
				return strings.TrimSpace(nested.Message)
			}
			var plain string
			if json.Unmarshal(eb.Error, &plain) == nil && strings.TrimSpace(plain) != "" {
				return strings.TrimSpace(plain)
			}
		}
	}
	return fmt.Sprintf("HTTP Error %d: %s", status, http.StatusText(status))
}
