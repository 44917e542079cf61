package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
)

func TestRenderEstimate(t *testing.T) {
	opp := &types.Opportunity{
		Symbol:           "ETH",
		LongExchange:     types.VenueSynthetix,
		ShortExchange:    types.VenueBinance,
		LongFundingRate:  0.0002,
		ShortFundingRate: 0.0004,
	}
	estimate := &types.ProfitEstimate{
		Symbol:            "ETH",
		TotalProjectedPnl: 12.34,
		PerVenuePnl: map[types.Venue]float64{
			types.VenueSynthetix: 4.34,
			types.VenueBinance:   8.00,
		},
		HorizonHours: 8,
	}

	out := renderEstimate(opp, estimate, 10000)
	require.NotEmpty(t, out)

	assert.Contains(t, out, "Best Opportunity: ETH")
	assert.Contains(t, out, "Synthetix")
	assert.Contains(t, out, "Binance")
	assert.Contains(t, out, "+0.000600") // capture is the sum of both legs
	assert.Contains(t, out, "8h")
	assert.Contains(t, out, "$+12.34")
}

func TestRenderEstimateNegativePnl(t *testing.T) {
	opp := &types.Opportunity{
		Symbol:           "BTC",
		LongExchange:     types.VenueBinance,
		ShortExchange:    types.VenueSynthetix,
		LongFundingRate:  -0.0001,
		ShortFundingRate: 0.0002,
	}
	estimate := &types.ProfitEstimate{
		Symbol:            "BTC",
		TotalProjectedPnl: -3.50,
		PerVenuePnl:       map[types.Venue]float64{},
		HorizonHours:      24,
	}

	out := renderEstimate(opp, estimate, 5000)

	assert.Contains(t, out, "Best Opportunity: BTC")
	assert.Contains(t, out, "$-3.50")
	assert.Contains(t, out, "24h")
}
