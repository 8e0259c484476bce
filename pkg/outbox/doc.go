// Package outbox decouples "a caller wants an email sent" from "an
// email was transmitted".
//
// Enqueue persists a durable job in the central database and returns
// immediately. A single polling worker claims due jobs oldest-first,
// one per tick, attempts delivery through an SMTP (or Postmark)
// transport, and retries failures on a fixed backoff up to a bounded
// budget. Jobs are never deleted: completed and permanently failed jobs
// remain as a delivery audit trail.
//
// The design assumes exactly one active worker process. Running the
// worker in several processes concurrently can produce duplicate sends;
// that is a deployment constraint, not something the worker defends
// against.
package outbox
