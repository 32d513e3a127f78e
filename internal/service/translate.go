// Package service implements request routing, translation and response relay.
package service

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"calc-gateway/internal/model"
	"calc-gateway/internal/registry"
)

// strippedRequestHeaders are dropped before forwarding; all others pass through.
var strippedRequestHeaders = []string{"Host", "Connection"}

// SplitServicePath splits an escaped path into its first segment and the
// remainder. Exactly one segment is removed, so "/calculate/calculate/x"
// yields ("calculate", "/calculate/x"). The remainder is empty when the path
// has a single segment and keeps a trailing slash verbatim.
func SplitServicePath(escapedPath string) (segment, remainder string) {
	p := strings.TrimPrefix(escapedPath, "/")
	segment, rest, found := strings.Cut(p, "/")
	if found {
		remainder = "/" + rest
	}
	return segment, remainder
}

// ServiceToken returns the normalized service name carried by a path.
func ServiceToken(escapedPath string) string {
	seg, _ := SplitServicePath(escapedPath)
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	return registry.Normalize(seg)
}

// Translate builds the outbound request for pr against ep. It is a pure
// function of its inputs.
func Translate(pr *model.ProxyRequest, ep registry.Endpoint) *model.OutboundRequest {
	_, remainder := SplitServicePath(pr.Path)

	u := *ep.BaseURL
	setEscapedPath(&u, strings.TrimSuffix(ep.BaseURL.EscapedPath(), "/")+remainder)
	u.RawQuery = pr.RawQuery
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return &model.OutboundRequest{
		Service: ep.Name,
		Method:  pr.Method,
		URL:     &u,
		Header:  SanitizeHeader(pr.Header),
		Body:    bytes.Clone(pr.Body),
	}
}

// SanitizeHeader returns a deep copy of h without Host and Connection,
// matched case-insensitively. Value order is preserved.
func SanitizeHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for key, vals := range h {
		if isStripped(key) {
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}

func isStripped(key string) bool {
	for _, s := range strippedRequestHeaders {
		if strings.EqualFold(key, s) {
			return true
		}
	}
	return false
}

// setEscapedPath stores an already-escaped path on u without re-encoding it.
func setEscapedPath(u *url.URL, escaped string) {
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		u.Path = escaped
		u.RawPath = ""
		return
	}
	u.Path = unescaped
	u.RawPath = escaped
}
