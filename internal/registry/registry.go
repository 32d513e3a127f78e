// Package registry holds the static mapping from logical service names to
// backend base addresses.
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidEndpoint is returned by New for malformed entries.
var ErrInvalidEndpoint = errors.New("invalid service endpoint")

// Endpoint is the resolved address of one backend service.
type Endpoint struct {
	Name      string
	BaseURL   *url.URL
	Protected bool
}

// Registry maps service names to endpoints. It is immutable after New returns,
// so concurrent Resolve calls need no locking.
type Registry struct {
	endpoints map[string]Endpoint
	names     []string
}

// Service is the raw configuration of one registry entry.
type Service struct {
	Name      string
	URL       string
	Protected bool
}

// New builds a Registry. Names are lower-cased; duplicates are rejected.
func New(services ...Service) (*Registry, error) {
	r := &Registry{endpoints: make(map[string]Endpoint, len(services))}

	for _, s := range services {
		name := Normalize(s.Name)
		if name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("registry: %w: bad service name %q", ErrInvalidEndpoint, s.Name)
		}
		if _, dup := r.endpoints[name]; dup {
			return nil, fmt.Errorf("registry: %w: duplicate service %q", ErrInvalidEndpoint, name)
		}

		u, err := ParseBaseURL(s.URL)
		if err != nil {
			return nil, fmt.Errorf("registry: service %q: %w", name, err)
		}

		r.endpoints[name] = Endpoint{Name: name, BaseURL: u, Protected: s.Protected}
		r.names = append(r.names, name)
	}

	sort.Strings(r.names)
	return r, nil
}

// ParseBaseURL validates a backend base address (scheme + host, optional path).
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q must use http or https", ErrInvalidEndpoint, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: %q must not carry a query or fragment", ErrInvalidEndpoint, raw)
	}
	return u, nil
}

// Normalize returns the registry key for a service token.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve looks up a service by name, case-insensitively.
func (r *Registry) Resolve(name string) (Endpoint, bool) {
	ep, ok := r.endpoints[Normalize(name)]
	return ep, ok
}

// Names returns the known service names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Snapshot returns a fresh name -> base URL map for diagnostics.
func (r *Registry) Snapshot() map[string]string {
	out := make(map[string]string, len(r.endpoints))
	for name, ep := range r.endpoints {
		out[name] = ep.BaseURL.String()
	}
	return out
}
