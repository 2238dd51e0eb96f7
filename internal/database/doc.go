// Package database provides SQLite-based storage for pathfinder.
//
// The Store keeps:
//   - calibrated baselines, keyed by origin, method and Accept-Encoding
//   - one row per scan with its final report as JSON
//   - every finding and undetermined index, tagged with its scan id
//
// SQLite (via modernc.org/sqlite) keeps the state in a single CGO-free file.
// Writes are serialized through one connection; WAL mode lets the findings
// command read while a scan is writing.
package database
