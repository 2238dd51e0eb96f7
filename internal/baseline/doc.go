// Package baseline captures the not-found signature of an origin.
//
// Calibration requests paths that cannot exist in the scanned path space
// (an uppercase prefix with digits) and requires every sample to agree on
// status and, within tolerance, on size. A target that answers the same
// missing path differently from one request to the next cannot be scanned
// by comparison and calibration fails.
//
// Baselines are cached per origin, method and Accept-Encoding so that a
// repeated scan of the same target can skip calibration.
package baseline
