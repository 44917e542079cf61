package testutil

import (
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
)

// CreateTestOpportunity builds an opportunity long on Synthetix, short
// on Binance, with receive-perspective rates that make both legs
// profitable.
func CreateTestOpportunity(symbol string) types.Opportunity {
	return types.Opportunity{
		Symbol:           symbol,
		LongExchange:     types.VenueSynthetix,
		ShortExchange:    types.VenueBinance,
		LongFundingRate:  0.0002,
		ShortFundingRate: 0.0004,
		Skew:             -1200,
		DetectedAt:       time.Now().UTC(),
	}
}

// CreateTestPosition builds an open position with sensible defaults.
func CreateTestPosition(venue types.Venue, symbol string, side types.Side, size float64) *types.Position {
	return &types.Position{
		ID:             "test-" + string(venue) + "-" + symbol,
		Venue:          venue,
		Symbol:         symbol,
		Side:           side,
		SizeInAsset:    types.SignedSize(size, side),
		EntryTimestamp: time.Now().UTC().Add(-time.Hour),
		Status:         types.StatusOpen,
	}
}
