package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for gateway failures.
var (
	// ErrUnknownService indicates the first path segment names no configured service.
	ErrUnknownService = errors.New("unknown service")

	// ErrBackendUnreachable indicates the backend refused, was not found, or did
	// not answer within the timeout.
	ErrBackendUnreachable = errors.New("backend unreachable")

	// ErrBackendProtocol indicates a failed exchange with a reachable backend.
	ErrBackendProtocol = errors.New("backend protocol error")
)

// ErrorKind enumerates the gateway error taxonomy.
type ErrorKind int

const (
	KindUnknownService ErrorKind = iota
	KindBackendUnreachable
	KindBackendProtocolError
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnknownService:
		return ErrUnknownService
	case KindBackendUnreachable:
		return ErrBackendUnreachable
	default:
		return ErrBackendProtocol
	}
}

// GatewayError is a failure surfaced to the caller. Cause is for operators
// only and never appears in Message.
type GatewayError struct {
	Kind    ErrorKind
	Service string
	Known   []string // populated for KindUnknownService
	Cause   error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway error service=%s: %v: %v", e.Service, e.Kind.sentinel(), e.Cause)
	}
	return fmt.Sprintf("gateway error service=%s: %v", e.Service, e.Kind.sentinel())
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind.
func (e *GatewayError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// StatusCode returns the fixed HTTP status for the error kind.
func (e *GatewayError) StatusCode() int {
	switch e.Kind {
	case KindUnknownService:
		return http.StatusNotFound
	case KindBackendUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing description.
func (e *GatewayError) Message() string {
	switch e.Kind {
	case KindUnknownService:
		return fmt.Sprintf("Service '%s' not found. Available services: %s", e.Service, strings.Join(e.Known, ", "))
	case KindBackendUnreachable:
		return fmt.Sprintf("Cannot connect to the %s service. Is it running?", e.Service)
	default:
		return fmt.Sprintf("Internal error communicating with %s service.", e.Service)
	}
}
