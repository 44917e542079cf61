// Package exchange defines the venue adapter contract and its two
// implementations: the Synthetix perps deployment on Base and the
// Binance USD-M futures API. The core never sees venue wire formats;
// it depends only on these operations and their failure modes.
package exchange

import (
	"context"
	"errors"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
)

// Adapter is the venue-agnostic contract the estimator and position
// controller depend on. Every call is a potentially blocking network
// operation and must be given a context with a deadline. Failures are
// signaled through typed errors, never coerced to success.
type Adapter interface {
	// Venue identifies the exchange this adapter talks to.
	Venue() types.Venue

	// GetOpenPosition returns the live open position for symbol, or
	// (nil, nil) when there is none.
	GetOpenPosition(ctx context.Context, symbol string) (*types.Position, error)

	// SubmitOrder submits a market order. signedSize follows the
	// direction convention: positive = long, negative = short.
	SubmitOrder(ctx context.Context, symbol string, signedSize float64) (*types.OrderResult, error)

	// GetFundingRate returns the current fractional funding rate for
	// symbol, normalized to the venue's settlement period.
	GetFundingRate(ctx context.Context, symbol string) (float64, error)

	// GetFundingSchedule returns upcoming funding settlement events as
	// Base block heights. Venues with continuous funding return an
	// empty schedule.
	GetFundingSchedule(ctx context.Context) ([]int64, error)

	// GetQuote returns the index and projected fill price for an order
	// of the given signed size.
	GetQuote(ctx context.Context, symbol string, size float64) (*types.Quote, error)

	// GetCollateralBalance returns the account's free collateral in USD.
	GetCollateralBalance(ctx context.Context, account *types.CollateralAccount) (float64, error)
}

// CollateralManager is implemented by the on-chain venue. The discrete
// steps map onto the controller's provisioning pipeline; each step is
// independently idempotent and safe to re-run.
type CollateralManager interface {
	// EnsureAccount returns the venue margin account, creating it on
	// first use.
	EnsureAccount(ctx context.Context) (*types.CollateralAccount, error)

	ApproveSpotMarket(ctx context.Context, amount float64) error
	WrapCollateral(ctx context.Context, amount float64) error
	ExecuteAtomicOrder(ctx context.Context, side string, amount float64) error
	ApprovePerpsMarket(ctx context.Context, amount float64) error
	DepositMargin(ctx context.Context, amount float64) error
}

// SkewReader exposes the on-chain order-book imbalance, which the
// scanner folds into opportunity candidates.
type SkewReader interface {
	GetSkew(ctx context.Context, symbol string) (float64, error)
}

// classify wraps a transport error as a TradeError, mapping context
// deadline expiry to the Timeout kind so the controller's retry policy
// can treat it like a venue rejection.
func classify(err error, venue types.Venue, op, symbol string) error {
	if err == nil {
		return nil
	}

	kind := types.KindVenueRejected
	if errors.Is(err, context.DeadlineExceeded) {
		kind = types.KindTimeout
	}

	return types.NewTradeError(kind, venue, op, symbol, err)
}

// classifyData is the read-path variant of classify: a failed market
// data fetch is KindDataUnavailable so callers skip the symbol rather
// than retry, unless the deadline expired.
func classifyData(err error, venue types.Venue, op, symbol string) error {
	if err == nil {
		return nil
	}

	kind := types.KindDataUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = types.KindTimeout
	}

	return types.NewTradeError(kind, venue, op, symbol, err)
}
