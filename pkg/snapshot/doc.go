// Package snapshot captures a collection member's externally visible result
// as an immutable value: identity, reference id, attribute values, and the
// last (action, status) the member reached.
//
// A snapshot is created when a member operation completes and replaced
// wholesale by the next completed operation; it never mutates. Aggregate
// queries over many members read snapshots instead of re-querying every
// member synchronously. An attribute whose capture failed is stored as a
// deferred *AttributeError and re-raised only when that attribute is
// accessed, so one member's failure does not poison an aggregate query.
//
// The plain-mapping form produced by AsMap and consumed by FromMap is the
// only state the orchestration core persists; the two are exact inverses.
// The mapping encodes a deferred failure as a one-key map under the
// reserved key "__deferred_error__", so an attribute VALUE of exactly that
// shape cannot survive a round trip as a plain value.
package snapshot
