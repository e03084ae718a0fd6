package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are shared by the credential codec, the session store, the
// gateway and the timer engine so callers can branch with errors.Is without
// importing the package that produced the failure.
// -----------------------------------------------------------------------------

// Credential errors
var (
	ErrDecode            = errors.New("credential is malformed")
	ErrInvalidCredential = errors.New("invalid credential: unable to extract user data")
)

// Gateway errors
var (
	ErrNetworkUnavailable = errors.New("network error: unable to reach the API server")
	ErrRequestFailed      = errors.New("request failed")
	ErrSessionExpired     = errors.New("unauthorized: session expired, please login again")
)

// Timer errors
var (
	ErrNoActiveTimer      = errors.New("no active timer")
	ErrBusy               = errors.New("another clock request is still in flight")
	ErrAlreadyRunning     = errors.New("a timer is already running")
	ErrNotRunning         = errors.New("no timer is running")
	ErrGatewayUnavailable = errors.New("API not available, check your connection")
	ErrProjectRequired    = errors.New("select a project first")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
