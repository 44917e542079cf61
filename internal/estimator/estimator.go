// Package estimator turns scanner opportunities into projected profit
// figures and ranks them. The on-chain leg is projected by integrating
// the block-indexed funding rate with its velocity drift; the offshore
// leg by counting discrete settlement events inside the horizon. Both
// legs share one sizing: a fixed USD notional converted to asset units
// at the oracle price.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/funding"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/chain"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/oracle"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// Gas consumed by an on-chain round trip: order commitment plus the
// eventual close commitment.
const synthetixGasPerRoundTrip = 3_000_000

// Config holds the estimator dependencies and trade sizing.
type Config struct {
	Adapters     map[types.Venue]exchange.Adapter
	Oracle       oracle.PriceSource
	Chain        chain.Reader
	NotionalUSD  float64
	SynthetixFee float64 // taker fee as a fraction of notional
	BinanceFee   float64
	Logger       *zap.Logger
}

// Estimator projects funding income for opportunities.
type Estimator struct {
	adapters     map[types.Venue]exchange.Adapter
	oracle       oracle.PriceSource
	chain        chain.Reader
	notionalUSD  float64
	synthetixFee float64
	binanceFee   float64
	logger       *zap.Logger
}

// New creates an estimator.
func New(cfg *Config) (*Estimator, error) {
	if len(cfg.Adapters) == 0 {
		return nil, errors.New("adapters cannot be empty")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("oracle cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, errors.New("chain reader cannot be nil")
	}
	if cfg.NotionalUSD <= 0 {
		return nil, fmt.Errorf("notional must be positive, got %v", cfg.NotionalUSD)
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Estimator{
		adapters:     cfg.Adapters,
		oracle:       cfg.Oracle,
		chain:        cfg.Chain,
		notionalUSD:  cfg.NotionalUSD,
		synthetixFee: cfg.SynthetixFee,
		binanceFee:   cfg.BinanceFee,
		logger:       cfg.Logger,
	}, nil
}

// EstimateProfit projects the net funding income of opp over the given
// horizon, fees and on-chain execution cost included. Both legs are
// sized to the configured notional at the current oracle price.
func (e *Estimator) EstimateProfit(ctx context.Context, opp *types.Opportunity, horizonHours int) (*types.ProfitEstimate, error) {
	if horizonHours <= 0 {
		return nil, types.NewTradeError(types.KindInvariantViolation, "", "estimate-profit", opp.Symbol,
			fmt.Errorf("horizon must be positive, got %d", horizonHours))
	}

	price, err := e.oracle.GetPrice(ctx, opp.Symbol)
	if err != nil {
		return nil, fmt.Errorf("oracle price for %s: %w", opp.Symbol, err)
	}

	startBlock, err := e.chain.GetBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("current block: %w", err)
	}
	endBlock := startBlock + int64(horizonHours)*funding.BlocksPerHourBase

	size := e.notionalUSD / price

	perVenue := make(map[types.Venue]float64, 2)
	total := 0.0

	for _, side := range []types.Side{types.SideLong, types.SideShort} {
		venue := opp.VenueFor(side)
		signedSize := types.SignedSize(size, side)

		pnl, err := e.projectLeg(ctx, opp, side, signedSize, price, startBlock, endBlock, horizonHours)
		if err != nil {
			return nil, fmt.Errorf("project %s leg on %s: %w", side, venue, err)
		}

		perVenue[venue] = pnl
		total += pnl
	}

	estimate := &types.ProfitEstimate{
		Symbol:            opp.Symbol,
		TotalProjectedPnl: total,
		PerVenuePnl:       perVenue,
		HorizonHours:      horizonHours,
	}

	ProjectedPnlGauge.WithLabelValues(opp.Symbol).Set(total)
	return estimate, nil
}

// projectLeg returns the leg's net USD PnL: funding income on the
// fee-adjusted size, minus gas on the on-chain venue.
func (e *Estimator) projectLeg(ctx context.Context, opp *types.Opportunity, side types.Side, signedSize, price float64, startBlock, endBlock int64, horizonHours int) (float64, error) {
	venue := opp.VenueFor(side)
	// Receive-perspective rate re-expressed for the signed-size model:
	// a short's income shows up as a negative rate on a negative size.
	rate := opp.RateFor(side)
	if signedSize < 0 {
		rate = -rate
	}

	// The venue fee comes off the working size; only the fee-adjusted
	// size earns funding.
	sizeAfterFee := signedSize * (1 - e.feeFor(venue))

	var fundingAsset float64

	switch venue {
	case types.VenueSynthetix:
		velocity := opp.FundingVelocity
		if velocity == 0 {
			velocity = exchange.CalculateFundingVelocity(opp.Symbol, opp.Skew, sizeAfterFee)
		}
		if signedSize < 0 {
			velocity = -velocity
		}

		fundingAsset = funding.ProjectOnChainFunding(rate, velocity, sizeAfterFee, startBlock, endBlock, funding.BlocksPerDayBase)

	case types.VenueBinance:
		adapter, ok := e.adapters[venue]
		if !ok {
			return 0, fmt.Errorf("no adapter for venue %s", venue)
		}

		events, err := adapter.GetFundingSchedule(ctx)
		if err != nil {
			return 0, err
		}

		fundingAsset = funding.ProjectScheduledFunding(rate, sizeAfterFee, events, startBlock, endBlock)

	default:
		return 0, fmt.Errorf("unknown venue %s", venue)
	}

	pnl := fundingAsset * price

	if venue == types.VenueSynthetix {
		pnl -= e.gasCostUSD(ctx)
	}

	return pnl, nil
}

// gasCostUSD estimates the on-chain round-trip execution cost. Gas
// estimation failures degrade to zero cost rather than sinking the
// whole estimate.
func (e *Estimator) gasCostUSD(ctx context.Context) float64 {
	gasPriceGwei, err := e.chain.GetGasPrice(ctx)
	if err != nil {
		e.logger.Warn("gas-price-unavailable", zap.Error(err))
		return 0
	}

	ethPrice, err := e.oracle.GetPrice(ctx, "ETH")
	if err != nil {
		e.logger.Warn("eth-price-unavailable", zap.Error(err))
		return 0
	}

	return chain.GasCostUSD(gasPriceGwei, synthetixGasPerRoundTrip, ethPrice)
}

func (e *Estimator) feeFor(venue types.Venue) float64 {
	if venue == types.VenueBinance {
		return e.binanceFee
	}
	return e.synthetixFee
}

// Rank estimates every opportunity and returns the most profitable one
// with its estimate. Opportunities whose estimate fails are skipped.
// Ties keep the earlier opportunity, so ranking is deterministic for a
// fixed input order. Returns (nil, nil, nil) when nothing rankable
// remains.
func (e *Estimator) Rank(ctx context.Context, opps []types.Opportunity, horizonHours int) (*types.Opportunity, *types.ProfitEstimate, error) {
	start := time.Now()
	defer func() {
		RankDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var (
		best         *types.Opportunity
		bestEstimate *types.ProfitEstimate
	)

	for i := range opps {
		opp := &opps[i]

		estimate, err := e.EstimateProfit(ctx, opp, horizonHours)
		if err != nil {
			if types.IsKind(err, types.KindInvariantViolation) {
				return nil, nil, err
			}

			e.logger.Warn("opportunity-skipped",
				zap.String("symbol", opp.Symbol),
				zap.Error(err))
			SkippedOpportunitiesTotal.Inc()
			continue
		}

		if bestEstimate == nil || estimate.TotalProjectedPnl > bestEstimate.TotalProjectedPnl {
			best = opp
			bestEstimate = estimate
		}
	}

	if best != nil {
		e.logger.Info("opportunity-ranked",
			zap.String("symbol", best.Symbol),
			zap.Float64("projected-pnl", bestEstimate.TotalProjectedPnl),
			zap.Int("horizon-hours", bestEstimate.HorizonHours),
			zap.Int("candidates", len(opps)))
	}

	return best, bestEstimate, nil
}
