// Package auth verifies bearer tokens and exposes the resulting actor
// identity through the request context.
//
// Token mechanics are deliberately minimal: HS256 JWTs verified with a
// shared signing key. Downstream code consumes only the Identity (id
// and role), never the token itself. Requests without a token pass
// through anonymously; audit records for such requests carry no actor.
package auth
