// Package requestmeta captures per-request network metadata (client IP,
// user agent, HTTP method and URL) into the request context.
//
// The values travel with the context through every continuation of the
// request, including background work spawned from it, so cross-cutting
// code such as the audit recorder can attribute its records without any
// explicit parameter threading. Nothing here is process-global: the
// metadata lives and dies with the request's context.
package requestmeta
