// Package pipeline runs the stages of a scan in sequence.
//
// A scan is a list of steps over one *model.ScanReport: record the scan,
// resolve the baseline, enumerate the span. Each step receives the report
// filled in by the previous ones. Final steps, such as persisting the scan
// record, run after the main steps even when one failed or the scan was
// cancelled.
package pipeline
