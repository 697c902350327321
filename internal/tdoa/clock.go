package tdoa

// Clock correction constants, ported from the anchor-clock-discipline
// filter: a noise gate produces low-jitter estimates once locked, while
// a leaky bucket tolerates a sustained disagreement (anchor swap, large
// glitch) and eventually re-seeds, but only within hardware spec.
const (
	// MaxClockDeviation bounds how far a physically plausible clock
	// ratio can drift from 1.0 (parts per million scale oscillators).
	MaxClockDeviation = 10e-6

	// ClockCorrectionSpecMin and ClockCorrectionSpecMax bound the
	// values a reseed candidate must fall within to be accepted.
	ClockCorrectionSpecMin = 1.0 - 2*MaxClockDeviation
	ClockCorrectionSpecMax = 1.0 + 2*MaxClockDeviation

	// ClockCorrectionNoise is the acceptance gate: a candidate within
	// this distance of the current estimate is treated as a
	// low-passed refinement rather than a competing reference.
	ClockCorrectionNoise = 0.03e-6

	// ClockCorrectionFilter is the low-pass weight applied to the
	// current estimate when a sample passes the noise gate.
	ClockCorrectionFilter = 0.1

	// ClockCorrectionBucketMax caps the leaky bucket; it takes this
	// many consecutive out-of-gate samples before a new reference is
	// accepted.
	ClockCorrectionBucketMax = 4

	// TimestampMask truncates a 64-bit tick count to the 40-bit range
	// anchor clocks actually use, so subtraction wraps the way the
	// hardware counter does.
	TimestampMask = (uint64(1) << 40) - 1
)

// ClockCorrection is a per-anchor scalar estimator of f_anchor/f_tag.
// The zero value means "unknown, do not compute TDoA" — callers must
// treat Correction() == 0 as a hard precondition failure, not a valid
// ratio.
type ClockCorrection struct {
	correction float64
	bucket     int
}

// Correction returns the current estimate. Zero means no reliable
// sample has ever been accepted for this anchor.
func (c *ClockCorrection) Correction() float64 {
	return c.correction
}

// Bucket returns the current leaky-bucket level, for tests and
// telemetry only.
func (c *ClockCorrection) Bucket() int {
	return c.bucket
}

// maskedDelta computes b-a modulo 2^40, the wrap-aware subtraction
// every anchor-timestamp comparison must use.
func maskedDelta(a, b uint64) uint64 {
	return (b - a) & TimestampMask
}

// CandidateFromPackets computes a clock-correction candidate from two
// consecutive packet pairs (txAnchor, rxTag) and (prevTxAnchor,
// prevRxTag), all in their native clock domains. It reports ok=false
// when the anchor-side delta is zero, since the ratio is then
// undefined — the caller must skip the sample entirely rather than
// feed a bogus value into the filter.
func CandidateFromPackets(txAnchor, prevTxAnchor, rxTag, prevRxTag uint64) (candidate float64, ok bool) {
	deltaAnchor := maskedDelta(prevTxAnchor, txAnchor)
	if deltaAnchor == 0 {
		return 0, false
	}
	deltaTag := maskedDelta(prevRxTag, rxTag)
	return float64(deltaTag) / float64(deltaAnchor), true
}

// Update applies the noise-gate/leaky-bucket policy to a new
// candidate. It reports whether the resulting sample is reliable
// (the engine should proceed to emit a TDoA from it): true only when
// the candidate landed inside the noise gate and was folded into the
// filtered estimate.
func (c *ClockCorrection) Update(candidate float64) bool {
	difference := candidate - c.correction

	if -ClockCorrectionNoise < difference && difference < ClockCorrectionNoise {
		c.correction = c.correction*ClockCorrectionFilter + candidate*(1.0-ClockCorrectionFilter)
		if c.bucket < ClockCorrectionBucketMax {
			c.bucket++
		}
		return true
	}

	if c.bucket > 0 {
		c.bucket--
		return false
	}

	// Bucket has run dry: accept a plausible candidate as a fresh
	// reference. This is not a reliable sample — it is the first of a
	// new series and needs a second measurement to confirm it.
	if ClockCorrectionSpecMin < candidate && candidate < ClockCorrectionSpecMax {
		c.correction = candidate
	}
	return false
}
