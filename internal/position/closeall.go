package position

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// closeTarget is one leg queued for CloseAll.
type closeTarget struct {
	venue  types.Venue
	symbol string
}

// CloseAll closes every tracked leg using a bounded worker pool. Legs
// close independently: one failure does not stop the others, and the
// returned error aggregates every leg that could not be closed.
func (c *Controller) CloseAll(ctx context.Context) error {
	targets := c.closeTargets()
	if len(targets) == 0 {
		c.logger.Info("close-all-nothing-open")
		return nil
	}

	c.logger.Info("close-all-started",
		zap.Int("legs", len(targets)),
		zap.Int("workers", c.closeAllWorkers))

	queue := make(chan closeTarget)
	failures := make(chan error, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < c.closeAllWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range queue {
				if _, err := c.ClosePosition(ctx, target.venue, target.symbol); err != nil {
					failures <- fmt.Errorf("%s on %s: %w", target.symbol, target.venue, err)
				}
			}
		}()
	}

	for _, target := range targets {
		queue <- target
	}
	close(queue)
	wg.Wait()
	close(failures)

	var errs []error
	for err := range failures {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		c.logger.Error("close-all-partial-failure",
			zap.Int("failed", len(errs)),
			zap.Int("total", len(targets)))
		return fmt.Errorf("close-all: %d of %d legs failed: %w", len(errs), len(targets), errors.Join(errs...))
	}

	c.logger.Info("close-all-complete", zap.Int("legs", len(targets)))
	return nil
}

// closeTargets snapshots tracked pairs into a flat leg list.
func (c *Controller) closeTargets() []closeTarget {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []closeTarget
	for symbol, pair := range c.pairs {
		if pair.Long != nil {
			out = append(out, closeTarget{venue: pair.Long.Venue, symbol: symbol})
		}
		if pair.Short != nil {
			out = append(out, closeTarget{venue: pair.Short.Venue, symbol: symbol})
		}
	}
	return out
}
