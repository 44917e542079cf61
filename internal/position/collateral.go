package position

import (
	"context"
	"fmt"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/waitfor"
	"go.uber.org/zap"
)

// collateralStep is one stage of the provisioning pipeline.
type collateralStep struct {
	name string
	run  func(ctx context.Context) error
}

// ProvisionCollateral moves amountUSD of raw stablecoin into usable
// perps margin: approve the spot market, wrap to the synth, re-approve,
// atomically sell the synth for sUSD, approve the perps market, and
// deposit. Steps run strictly in order with a settling delay between
// them. A failed step aborts the pipeline; earlier steps are not rolled
// back, since each leaves funds in a recoverable place.
func (c *Controller) ProvisionCollateral(ctx context.Context, amountUSD float64) error {
	if c.collateral == nil {
		return types.NewTradeError(types.KindInvariantViolation, types.VenueSynthetix, "provision-collateral", "",
			fmt.Errorf("no collateral manager configured"))
	}
	if amountUSD <= 0 {
		return types.NewTradeError(types.KindInvariantViolation, types.VenueSynthetix, "provision-collateral", "",
			fmt.Errorf("amount must be positive, got %v", amountUSD))
	}

	if _, err := c.collateral.EnsureAccount(ctx); err != nil {
		return fmt.Errorf("ensure margin account: %w", err)
	}

	steps := []collateralStep{
		{"approve-spot-market", func(ctx context.Context) error { return c.collateral.ApproveSpotMarket(ctx, amountUSD) }},
		{"wrap-collateral", func(ctx context.Context) error { return c.collateral.WrapCollateral(ctx, amountUSD) }},
		{"reapprove-spot-market", func(ctx context.Context) error { return c.collateral.ApproveSpotMarket(ctx, amountUSD) }},
		{"atomic-sell", func(ctx context.Context) error { return c.collateral.ExecuteAtomicOrder(ctx, "sell", amountUSD) }},
		{"approve-perps-market", func(ctx context.Context) error { return c.collateral.ApprovePerpsMarket(ctx, amountUSD) }},
		{"deposit-margin", func(ctx context.Context) error { return c.collateral.DepositMargin(ctx, amountUSD) }},
	}

	start := time.Now()
	for i, step := range steps {
		c.logger.Info("collateral-step",
			zap.String("step", step.name),
			zap.Int("index", i+1),
			zap.Int("total", len(steps)))

		if err := step.run(ctx); err != nil {
			CollateralStepFailuresTotal.WithLabelValues(step.name).Inc()
			return types.NewTradeError(types.KindPipelineStepFailed, types.VenueSynthetix, step.name, "",
				fmt.Errorf("step %d/%d: %w", i+1, len(steps), err))
		}

		if i < len(steps)-1 {
			if err := waitfor.Sleep(ctx, c.collateralStepDelay); err != nil {
				return fmt.Errorf("aborted between steps: %w", err)
			}
		}
	}

	c.logger.Info("collateral-provisioned",
		zap.Float64("amount-usd", amountUSD),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}
