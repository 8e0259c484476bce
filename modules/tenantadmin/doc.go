// Package tenantadmin exposes the super-admin surface for managing
// tenants: provisioning with a one-time setup passkey, listing,
// updates, deactivation and removal, plus the public setup-completion
// endpoint served on the tenant's own subdomain.
//
// All writes go through an audited tenant store, so every change to
// the tenant directory leaves an attributed audit trail. Provisioning
// enqueues a welcome email through the outbox rather than sending
// inline.
package tenantadmin
