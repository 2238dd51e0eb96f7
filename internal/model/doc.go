// Package model defines the data structures shared across pathfinder.
//
// This package contains the following main types:
//   - Baseline: the not-found signature captured once per scan
//   - Classification: the verdict for one probe (no match, match, blocked)
//   - Finding: a persisted match
//   - Undetermined: an index whose classification could not be established
//   - ScanReport: the accumulated result of one scan run
//
// Models live in their own package because the engine, telemetry, storage
// and report packages all need them. They are serializable to JSON for
// report output and database storage.
package model
