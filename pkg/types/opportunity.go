package types

import (
	"fmt"
	"time"
)

// Opportunity is a candidate funding-rate arbitrage produced by the
// scanner: one long and one short perpetual position on two venues whose
// funding rates diverge. Opportunities are immutable once produced and
// are discarded after a ranking pass.
//
// Funding rates are fractional (0.0004 = 0.04%) and quoted from the
// position holder's receive perspective for the named side.
type Opportunity struct {
	Symbol           string
	LongExchange     Venue
	ShortExchange    Venue
	LongFundingRate  float64
	ShortFundingRate float64
	// Skew is the on-chain order-book imbalance at scan time, in asset
	// units. Used to derive the funding velocity for the on-chain leg.
	Skew float64
	// FundingVelocity, when non-zero, overrides the velocity derived
	// from Skew. Optional.
	FundingVelocity float64
	DetectedAt      time.Time
}

// RateSpread returns the combined funding capture per settlement
// period across both legs. Rates are receive-perspective, so the
// capture is their sum.
func (o *Opportunity) RateSpread() float64 {
	return o.LongFundingRate + o.ShortFundingRate
}

// VenueFor returns the venue holding the given side of the trade.
func (o *Opportunity) VenueFor(side Side) Venue {
	if side == SideShort {
		return o.ShortExchange
	}
	return o.LongExchange
}

// RateFor returns the funding rate for the given side's leg.
func (o *Opportunity) RateFor(side Side) float64 {
	if side == SideShort {
		return o.ShortFundingRate
	}
	return o.LongFundingRate
}

func (o *Opportunity) String() string {
	return fmt.Sprintf("Opportunity[%s] long=%s@%.6f short=%s@%.6f skew=%.2f",
		o.Symbol, o.LongExchange, o.LongFundingRate, o.ShortExchange, o.ShortFundingRate, o.Skew)
}

// ProfitEstimate is the projected funding income for one opportunity
// over a future horizon, in quote currency. Created by the estimator,
// consumed by the orchestrator, never persisted.
type ProfitEstimate struct {
	Symbol            string
	TotalProjectedPnl float64
	PerVenuePnl       map[Venue]float64
	HorizonHours      int
}
