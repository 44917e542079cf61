// Package funding contains the pure funding-projection model. It converts
// raw funding parameters into projected funding cash flow for each venue
// class: a continuous block-indexed rate-and-velocity model for the
// on-chain venue and a discrete scheduled-event model for the centralized
// venue.
package funding

// Base chain block cadence.
const (
	BlocksPerDayBase  = 43200
	BlocksPerHourBase = 1800
)

// ProjectOnChainFunding integrates a linearly drifting funding rate over a
// block range, inclusive of both endpoints. For each block b in
// [startBlock, endBlock] the rate is
//
//	adjustedRate(b) = initialRate + velocity*(b - startBlock)
//
// and the per-block accrual is adjustedRate(b) * sizeInAsset / blocksPerDay.
// The drift term matters: on-chain perpetuals recompute funding every
// block, so trade-induced skew velocity materially shifts multi-hour
// projections compared to a flat-rate approximation.
//
// A range with endBlock < startBlock yields zero funding, not an error.
// The result is in asset units and carries the sign of sizeInAsset (and
// of the rate path).
func ProjectOnChainFunding(initialRate, velocity, sizeInAsset float64, startBlock, endBlock int64, blocksPerDay float64) float64 {
	if endBlock < startBlock {
		return 0
	}

	total := 0.0
	for b := startBlock; b <= endBlock; b++ {
		adjustedRate := initialRate + velocity*float64(b-startBlock)
		total += adjustedRate * sizeInAsset / blocksPerDay
	}

	return total
}

// ProjectScheduledFunding sums one settlement of rate * sizeInAsset per
// schedule event that falls within [windowStart, windowEnd], inclusive.
// This models venues that settle funding at fixed times (every 8 hours)
// rather than accruing continuously. Events are expressed as Base block
// heights, the same clock the on-chain projection uses.
//
// An empty schedule yields zero funding.
func ProjectScheduledFunding(rate, sizeInAsset float64, scheduleEvents []int64, windowStart, windowEnd int64) float64 {
	total := 0.0
	for _, event := range scheduleEvents {
		if event >= windowStart && event <= windowEnd {
			total += rate * sizeInAsset
		}
	}

	return total
}
