// Package telemetry consumes worker events, keeps scan-wide counters,
// forwards findings to persistence and renders a periodic progress line.
//
// The Aggregator is the only reader of the event channel, so its counters
// need no locking. Sink failures are logged and never stop the scan.
package telemetry
