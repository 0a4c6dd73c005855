// Package cache fronts the aggregated configuration with two caches.
//
// The entire cache is the full tree produced by an Aggregator, built at
// most once per epoch and optionally persisted as a snapshot. The sparse
// cache remembers only the paths actually requested: when any ancestor of
// a requested path is loaded, the answer comes from that ancestor without
// touching the entire cache. Reset discards both trees and both snapshots.
//
// Snapshot failures never fail a lookup. Unreadable snapshots are rebuilt
// and failed writes leave the value in memory, both reported through the
// diagnostics sink.
package cache
