// Package model defines shared types for the gateway.
package model

import (
	"context"
	"net/http"
	"net/url"
)

// ResultKind classifies the outcome of a forward attempt.
type ResultKind int

const (
	// ResultOK means the backend answered; any status code counts.
	ResultOK ResultKind = iota
	// ResultUnreachable means the backend could not be reached, or did not
	// answer before the timeout.
	ResultUnreachable
	// ResultProtocolError means the exchange with a reachable backend failed.
	ResultProtocolError
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultUnreachable:
		return "unreachable"
	case ResultProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// ProxyRequest represents a client request as received by the gateway.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// Path is the escaped request path, e.g. "/calculate/add".
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// OutboundRequest is the request sent to a backend.
type OutboundRequest struct {
	Service string
	Method  string
	URL     *url.URL
	Header  http.Header
	Body    []byte
}

// BackendResult is what the forwarder yields for one outbound request.
type BackendResult struct {
	Kind       ResultKind
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

// ProxyResponse is the response written back to the caller.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
