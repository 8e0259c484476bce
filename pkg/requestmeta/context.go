package requestmeta

import "context"

// Meta holds the network metadata of one inbound request.
type Meta struct {
	IP        string
	UserAgent string
	Method    string
	URL       string
}

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithMeta attaches request metadata to the context.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext retrieves the request metadata from the context.
// Returns a zero Meta and false outside of a request scope.
func FromContext(ctx context.Context) (Meta, bool) {
	m, ok := ctx.Value(contextKey{}).(Meta)
	return m, ok
}
