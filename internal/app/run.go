package app

import (
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/notify"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.Strings("symbols", a.cfg.Symbols),
		zap.Int("horizon-hours", a.cfg.HorizonHours),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	a.feed.Start(a.ctx)
	a.healthChecker.SetComponent("market-feed", true)

	a.scanner.Start(a.ctx)
	a.healthChecker.SetComponent("scanner", true)

	a.healthChecker.SetComponent("trade-log", true)

	// Paper mode has no collateral to watch.
	if a.cfg.ExecutionMode == "live" {
		a.breaker.Start(a.ctx)
	}

	a.wg.Add(1)
	go a.runTradingLoop()

	a.wg.Add(1)
	go a.runHorizonMonitor()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// runTradingLoop consumes scanner candidates, ranks each batch, and
// opens the best pair when its projection clears zero.
func (a *App) runTradingLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case opp, ok := <-a.scanner.Opportunities():
			if !ok {
				return
			}
			a.handleBatch(a.drainBatch(opp))
		}
	}
}

// drainBatch collects every candidate the scanner has already queued,
// so one scan pass is ranked as a unit.
func (a *App) drainBatch(first types.Opportunity) []types.Opportunity {
	batch := []types.Opportunity{first}
	for {
		select {
		case opp, ok := <-a.scanner.Opportunities():
			if !ok {
				return batch
			}
			batch = append(batch, opp)
		default:
			return batch
		}
	}
}

func (a *App) handleBatch(batch []types.Opportunity) {
	for i := range batch {
		a.publisher.Publish(a.ctx, notify.Notification{
			Event:   notify.EventOpportunityFound,
			Symbol:  batch[i].Symbol,
			Message: batch[i].String(),
			At:      time.Now().UTC(),
		})
	}

	best, estimate, err := a.estimator.Rank(a.ctx, batch, a.cfg.HorizonHours)
	if err != nil {
		a.logger.Error("ranking-failed", zap.Error(err))
		return
	}
	if best == nil || estimate.TotalProjectedPnl <= 0 {
		return
	}

	if a.opts.DetectOnly {
		a.logger.Info("trade-skipped-detect-only",
			zap.String("symbol", best.Symbol),
			zap.Float64("projected-pnl", estimate.TotalProjectedPnl))
		return
	}

	if !a.breaker.IsEnabled() {
		a.logger.Warn("trade-skipped-breaker-open", zap.String("symbol", best.Symbol))
		return
	}

	// One pair at a time keeps collateral use predictable.
	if len(a.controller.Snapshot()) > 0 {
		a.logger.Debug("trade-skipped-pair-open", zap.String("symbol", best.Symbol))
		return
	}

	price, err := a.prices.GetPrice(a.ctx, best.Symbol)
	if err != nil {
		a.logger.Error("sizing-price-unavailable",
			zap.String("symbol", best.Symbol),
			zap.Error(err))
		return
	}
	size := tradeSize(a.cfg.TradeNotionalUSD, price, a.cfg.TradeLeverage)

	if _, err := a.controller.OpenPair(a.ctx, best, size); err != nil {
		a.logger.Error("open-pair-failed",
			zap.String("symbol", best.Symbol),
			zap.Error(err))
		return
	}
	a.breaker.RecordTrade(a.cfg.TradeNotionalUSD)
}

// tradeSize converts the collateral notional into an asset-denominated
// position size at the configured leverage, rounded to three decimals
// to satisfy venue lot sizes.
func tradeSize(notionalUSD, price, leverage float64) float64 {
	return math.Round(notionalUSD/price*leverage*1000) / 1000
}

// runHorizonMonitor closes pairs that have been held for the full
// profit horizon.
func (a *App) runHorizonMonitor() {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	horizon := time.Duration(a.cfg.HorizonHours) * time.Hour

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			for _, pair := range a.controller.Snapshot() {
				if time.Since(pair.OpenedAt) < horizon {
					continue
				}

				a.logger.Info("horizon-reached",
					zap.String("symbol", pair.Symbol),
					zap.Time("opened-at", pair.OpenedAt))

				a.closePair(pair)
			}
		}
	}
}

func (a *App) closePair(pair types.MatchedPositionPair) {
	for _, leg := range []*types.Position{pair.Long, pair.Short} {
		if leg == nil {
			continue
		}
		if _, err := a.controller.ClosePosition(a.ctx, leg.Venue, leg.Symbol); err != nil {
			a.logger.Error("horizon-close-failed",
				zap.String("venue", string(leg.Venue)),
				zap.String("symbol", leg.Symbol),
				zap.Error(err))
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
