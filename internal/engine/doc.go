// Package engine runs the enumeration: one worker per index range, each
// probing its range in ascending order, classifying every response and
// reporting through a single event channel.
//
// A worker moves through three states:
//
//	Running -> PausedBackoff -> Running -> ... -> Drained
//
// Blocked responses and transport errors pause the worker with an
// exponential backoff and re-probe the same index. After the configured
// number of consecutive failures the index is recorded as undetermined and
// the worker moves on, so a single bad index never stalls a range.
//
// Cancellation is checked before every probe and aborts probes in flight.
// A cancelled worker still reports its final count and emits a DrainedEvent
// carrying the first index it did not process. The final ProgressEvent is
// skipped when the last batch already carried the same count.
package engine
