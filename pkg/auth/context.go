package auth

import "context"

// Identity is the verified acting user of a request.
type Identity struct {
	ID   string
	Role string
}

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithIdentity attaches a verified identity to the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext retrieves the acting identity from the context.
// Returns false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
