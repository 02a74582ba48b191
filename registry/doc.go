// Package registry persists the durable record of every torrent the
// system has ever admitted, keyed by content hash.
//
// The registry serializes all lifecycle transitions through Transition,
// a compare-and-set on the current state: concurrent attempts with the
// same from-state resolve to exactly one winner. Metric ingestion is
// idempotent and the stored ratio is monotonic non-decreasing; a reported
// regression is logged as a data anomaly and dropped.
//
// Removed and failed records are retained indefinitely for audit but are
// excluded from pool aggregates.
package registry
