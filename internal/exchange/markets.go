package exchange

import (
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/funding"
)

// MarketInfo holds the static per-market parameters of the Synthetix
// perps deployment on Base. Skew scale and max funding velocity come
// from on-chain market configuration and change only by governance.
type MarketInfo struct {
	Symbol             string
	MarketID           uint64
	SkewScale          float64 // asset units at which proportional skew saturates
	MaxFundingVelocity float64 // max daily change of the daily funding rate
}

//nolint:gochecknoglobals // Static market directory
var marketDirectory = map[string]MarketInfo{
	"ETH": {Symbol: "ETH", MarketID: 100, SkewScale: 350_000, MaxFundingVelocity: 9},
	"BTC": {Symbol: "BTC", MarketID: 200, SkewScale: 35_000, MaxFundingVelocity: 9},
	"SOL": {Symbol: "SOL", MarketID: 300, SkewScale: 1_000_000, MaxFundingVelocity: 9},
	"OP":  {Symbol: "OP", MarketID: 400, SkewScale: 10_000_000, MaxFundingVelocity: 9},
	"ARB": {Symbol: "ARB", MarketID: 500, SkewScale: 10_000_000, MaxFundingVelocity: 9},
}

// MarketFor looks up the Synthetix market parameters for a symbol.
func MarketFor(symbol string) (MarketInfo, bool) {
	m, ok := marketDirectory[symbol]
	return m, ok
}

// CalculateFundingVelocity projects the per-block funding-rate velocity
// after a trade of tradeSize lands on top of the current skew. The
// venue scales velocity with proportional skew, saturating at the skew
// scale:
//
//	velocity/day = maxFundingVelocity * clamp(newSkew/skewScale, -1, 1)
//
// The result is converted to a per-block rate change so it can feed the
// block-indexed funding integration directly. Unknown symbols get zero
// velocity, which degrades the projection to the flat-rate model.
func CalculateFundingVelocity(symbol string, currentSkew, tradeSize float64) float64 {
	m, ok := marketDirectory[symbol]
	if !ok {
		return 0
	}

	newSkew := currentSkew + tradeSize
	proportional := newSkew / m.SkewScale
	if proportional > 1 {
		proportional = 1
	} else if proportional < -1 {
		proportional = -1
	}

	dailyVelocity := m.MaxFundingVelocity * proportional
	return dailyVelocity / funding.BlocksPerDayBase
}
