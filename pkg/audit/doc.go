// Package audit records attributed before/after change sets for every
// persistence operation, without the business code being aware of it.
//
// The mechanism is a store decorator: wrap any store.Store with Audited
// and each create, save, update-by-query and delete transparently emits
// a Record describing what changed, attributed to the acting user and
// request metadata found in the context.
//
// Audit writes are strictly best-effort. They run as detached
// background tasks, their failures are observable only in logs, and
// they can never fail, roll back or delay the business operation that
// triggered them. The audit collection itself is exempt from auditing.
package audit
