package provider

import (
	"fmt"
	"net/http"
)

// ConfigError indicates that no usable credential or setting could be
// resolved from the configured sources.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Message)
}

// TransportError represents a non-success HTTP status from the remote API.
// The body is not parsed when this error is produced.
type TransportError struct {
	StatusCode int
	Status     string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Status)
}

// NotFound reports whether the remote system answered 404
func (e *TransportError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// APIError represents an application-level error the remote system signals
// inside a success HTTP response.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s", e.Message)
}

// LifecycleError indicates a malformed or incomplete lifecycle response,
// such as a create response without an instance id.
type LifecycleError struct {
	Op      string
	Message string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("lifecycle error in %s: %s", e.Op, e.Message)
}

// UnsupportedError indicates a capability this backend does not implement
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("operation %s is not supported by the cloud backend", e.Op)
}

// CommandError wraps a failure during command dispatch. Nonzero exit codes
// are returned as data and never produce this error.
type CommandError struct {
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command execution failed: %v", e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
