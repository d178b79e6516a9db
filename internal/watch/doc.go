// Package watch turns successive manifest snapshots into release
// announcements.
//
// A Detector owns the set of identifiers already seen. Its first Update
// (the bootstrap) seeds the set silently so the historical catalog is not
// announced on startup; every later Update returns only identifiers that
// were absent before the call. A Cycle fetches one snapshot, feeds it to the
// Detector and, once bootstrapped, announces each new entry newest first:
// classify, filter, compose, broadcast, pace.
//
// Cycles must not overlap. Cycle.Run serializes callers itself, and the
// scheduler additionally delays a tick while the previous run is in flight.
package watch
