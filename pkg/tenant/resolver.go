package tenant

import (
	"net"
	"net/http"
	"strings"
)

// Resolver extracts the tenant routing key from an HTTP request.
type Resolver interface {
	// Resolve returns the subdomain identifying the tenant, or an empty
	// string when the host carries no distinguishable subdomain.
	Resolve(r *http.Request) (string, error)
}

// SubdomainResolver extracts the tenant key from the Host header's
// first label (e.g. "acme" from "acme.app.example.com").
type SubdomainResolver struct {
	// Suffix to strip from the host before splitting (e.g. ".app.example.com").
	Suffix string
}

// NewSubdomainResolver creates a subdomain resolver.
func NewSubdomainResolver(suffix string) *SubdomainResolver {
	return &SubdomainResolver{Suffix: suffix}
}

// Resolve extracts the subdomain. Bare domains, localhost and IP hosts
// yield an empty string so the middleware can fall back to the default
// tenant.
func (sr *SubdomainResolver) Resolve(r *http.Request) (string, error) {
	host := r.Host
	// SplitHostPort handles bracketed IPv6 literals; hosts without a
	// port fail it and are used as-is.
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	if sr.Suffix != "" && strings.HasSuffix(host, sr.Suffix) && len(host) > len(sr.Suffix) {
		return strings.TrimSuffix(host, sr.Suffix), nil
	}

	parts := strings.Split(host, ".")
	// A routable subdomain needs at least subdomain.domain.tld.
	if len(parts) < 3 {
		return "", nil
	}

	subdomain := parts[0]
	if subdomain == "www" {
		if len(parts) < 4 {
			return "", nil
		}
		subdomain = parts[1]
	}
	return subdomain, nil
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(r *http.Request) (string, error)

func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}
