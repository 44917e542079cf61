package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
)

// checkPremium quotes the venue for the intended size and returns the
// entry premium, the fill price's fractional deviation from index. A
// zero or negative fill price means the venue returned garbage and the
// trade must not proceed.
func (c *Controller) checkPremium(ctx context.Context, adapter exchange.Adapter, symbol string, signedSize float64) (float64, error) {
	quote, err := adapter.GetQuote(ctx, symbol, signedSize)
	if err != nil {
		return 0, fmt.Errorf("quote %s on %s: %w", symbol, adapter.Venue(), err)
	}

	if quote.FillPrice <= 0 {
		return 0, types.NewTradeError(types.KindInvariantViolation, adapter.Venue(), "check-premium", symbol,
			fmt.Errorf("non-positive fill price %v", quote.FillPrice))
	}
	if quote.IndexPrice <= 0 {
		return 0, types.NewTradeError(types.KindInvariantViolation, adapter.Venue(), "check-premium", symbol,
			errors.New("non-positive index price"))
	}

	premium := (quote.FillPrice - quote.IndexPrice) / quote.IndexPrice
	EntryPremiumGauge.WithLabelValues(string(adapter.Venue()), symbol).Set(premium)

	return premium, nil
}
