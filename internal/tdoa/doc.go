// Package tdoa implements the TDoA ranging engine: per-anchor clock
// discipline, bounded anchor storage, peer selection, and the TDoA
// arithmetic that turns anchor range packets into pairwise distance
// differences for a downstream position estimator.
//
// The tag driver (internal/radio) owns the radio event loop and calls
// into this package once per received packet; everything here runs to
// completion on that single call, non-blocking, with no goroutines of
// its own.
package tdoa
