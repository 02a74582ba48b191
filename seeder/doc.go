// Package seeder implements the seeding lifecycle manager: a single
// control loop that reconciles the active torrent pool against ratio,
// seed-time, count, and disk constraints.
//
// Each tick pulls one snapshot from the downloader, ingests it into the
// registry, evaluates every seeding record against policy, resolves
// conflicts when bounds are violated, and applies the resulting commands
// with bounded fan-out. Ticks never overlap; a tick that fails leaves no
// partial state behind that the next tick cannot re-derive, because every
// transition is an idempotent compare-and-set.
//
// Eviction only ever happens under bound pressure. Meeting the ratio and
// seed-time thresholds makes a torrent a candidate, not a casualty: with
// auto_delete disabled candidates are surfaced to the operator as
// eligible_for_removal, and with it enabled the minimum ranked set needed
// to satisfy the violated bound is removed, never more.
package seeder
