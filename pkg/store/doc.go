// Package store defines a small repository-style interface over
// document collections, with MongoDB and in-memory implementations.
//
// Entities declare their own identity and a flat map of auditable
// fields. That declaration is what lets the audit decorator diff any
// entity type without reflection: bookkeeping fields (identifier,
// auto-maintained timestamps) are simply never part of Fields().
package store
