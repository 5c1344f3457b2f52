// Package gtfsrt handles fetching and indexing GTFS-Realtime protobuf feeds.
//
// It consumes two feed types:
//   - Vehicle Positions: current vehicle locations and stop progress
//   - Trip Updates: per-trip stop sequences used to decide "reached or passed"
//
// The main type is Snapshot which indexes one fetch of a feed for fast
// per-trip lookups during rule evaluation.
package gtfsrt
