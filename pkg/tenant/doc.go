// Package tenant maps inbound requests to isolated tenants.
//
// Each tenant owns a logical database; the middleware resolves the
// request's subdomain to a tenant record in the central database,
// borrows that tenant's database handle from the connection registry,
// and stores both on the request context. A super-admin subdomain binds
// the request to the central database instead. Tenants that have not
// completed onboarding are gated behind a distinguished SETUP_REQUIRED
// response so API clients can redirect to the setup flow.
package tenant
