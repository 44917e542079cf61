// Package circuitbreaker gates pair opening on free collateral. When
// the thinner venue's margin drops below a threshold derived from
// recent trade sizes, opening is disabled until collateral recovers
// past a hysteresis band.
package circuitbreaker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// CollateralCircuitBreaker monitors free collateral on every venue and
// controls whether new pairs may be opened. Thresholds adapt to recent
// trade notionals, with hysteresis to prevent rapid state changes.
type CollateralCircuitBreaker struct {
	enabled atomic.Bool // lock-free reads on the hot path

	checkInterval   time.Duration
	adapters        map[types.Venue]exchange.Adapter
	logger          *zap.Logger
	tradeMultiplier float64 // multiplier over avg trade notional
	minAbsolute     float64 // absolute minimum collateral, USD
	hysteresisRatio float64 // re-enable at ratio * disable threshold

	mu               sync.RWMutex
	lastCollateral   float64   // thinnest venue at last check, USD
	lastCheck        time.Time
	recentTrades     []float64 // rolling window of trade notionals
	disableThreshold float64
	enableThreshold  float64
}

// Config holds circuit breaker configuration.
type Config struct {
	CheckInterval   time.Duration
	TradeMultiplier float64
	MinAbsolute     float64
	HysteresisRatio float64
	Adapters        map[types.Venue]exchange.Adapter
	Logger          *zap.Logger
}

// Status holds current circuit breaker status for debugging.
type Status struct {
	Enabled          bool
	LastCollateral   float64
	LastCheck        time.Time
	DisableThreshold float64
	EnableThreshold  float64
	AvgTradeNotional float64
	RecentTradeCount int
}

// New creates a new circuit breaker with the given configuration.
func New(cfg *Config) (*CollateralCircuitBreaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Adapters) == 0 {
		return nil, fmt.Errorf("adapters cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.TradeMultiplier <= 0 {
		return nil, fmt.Errorf("trade multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	b := &CollateralCircuitBreaker{
		checkInterval:    cfg.CheckInterval,
		adapters:         cfg.Adapters,
		logger:           cfg.Logger,
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		recentTrades:     make([]float64, 0, tradeWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}

	b.enabled.Store(true)

	BreakerEnabled.Set(1)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)
	BreakerAvgTradeNotional.Set(0)

	return b, nil
}

const tradeWindow = 20

// IsEnabled returns true if new pairs may be opened.
// This is lock-free and safe to call from hot paths.
func (b *CollateralCircuitBreaker) IsEnabled() bool {
	return b.enabled.Load()
}

// RecordTrade adds a trade notional to the rolling window and
// recalculates thresholds. Call this after a pair opens.
func (b *CollateralCircuitBreaker) RecordTrade(notionalUSD float64) {
	if notionalUSD <= 0 {
		b.logger.Warn("invalid-trade-notional",
			zap.Float64("notional", notionalUSD))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentTrades = append(b.recentTrades, notionalUSD)
	if len(b.recentTrades) > tradeWindow {
		b.recentTrades = b.recentTrades[1:]
	}

	sum := 0.0
	for _, notional := range b.recentTrades {
		sum += notional
	}
	avg := sum / float64(len(b.recentTrades))

	b.disableThreshold = math.Max(avg*b.tradeMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresisRatio

	BreakerAvgTradeNotional.Set(avg)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)

	b.logger.Debug("thresholds-updated",
		zap.Float64("avg-trade-notional", avg),
		zap.Int("trade-count", len(b.recentTrades)),
		zap.Float64("disable-threshold", b.disableThreshold),
		zap.Float64("enable-threshold", b.enableThreshold))
}

// CheckCollateral reads free collateral on every venue and updates the
// enabled state from the thinnest one. Both legs must be fundable, so
// the minimum across venues is what gates opening.
func (b *CollateralCircuitBreaker) CheckCollateral(ctx context.Context) error {
	start := time.Now()
	defer func() {
		BreakerCheckDuration.Observe(time.Since(start).Seconds())
	}()

	thinnest := math.Inf(1)
	for venue, adapter := range b.adapters {
		balance, err := adapter.GetCollateralBalance(ctx, nil)
		if err != nil {
			b.logger.Error("collateral-check-failed",
				zap.String("venue", string(venue)),
				zap.Error(err))
			return fmt.Errorf("collateral on %s: %w", venue, err)
		}
		BreakerVenueCollateral.WithLabelValues(string(venue)).Set(balance)
		if balance < thinnest {
			thinnest = balance
		}
	}

	b.mu.RLock()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.RUnlock()

	currentlyEnabled := b.enabled.Load()

	b.mu.Lock()
	b.lastCollateral = thinnest
	b.lastCheck = time.Now()
	b.mu.Unlock()

	shouldDisable := currentlyEnabled && thinnest < disableThreshold
	shouldEnable := !currentlyEnabled && thinnest >= enableThreshold

	switch {
	case shouldDisable:
		b.enabled.Store(false)
		BreakerEnabled.Set(0)
		BreakerStateChanges.Inc()

		b.logger.Warn("circuit-breaker-disabled",
			zap.Float64("collateral", thinnest),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	case shouldEnable:
		b.enabled.Store(true)
		BreakerEnabled.Set(1)
		BreakerStateChanges.Inc()

		b.logger.Info("circuit-breaker-enabled",
			zap.Float64("collateral", thinnest),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	default:
		b.logger.Debug("collateral-checked",
			zap.Float64("collateral", thinnest),
			zap.Bool("enabled", currentlyEnabled),
			zap.Float64("disable-threshold", disableThreshold))
	}

	return nil
}

// Start begins the background monitoring loop. Runs until the context
// is cancelled.
func (b *CollateralCircuitBreaker) Start(ctx context.Context) {
	b.logger.Info("circuit-breaker-started",
		zap.Duration("check-interval", b.checkInterval),
		zap.Float64("trade-multiplier", b.tradeMultiplier),
		zap.Float64("min-absolute", b.minAbsolute),
		zap.Float64("hysteresis-ratio", b.hysteresisRatio))

	if err := b.CheckCollateral(ctx); err != nil {
		b.logger.Error("initial-collateral-check-failed", zap.Error(err))
	}

	go b.monitorLoop(ctx)
}

func (b *CollateralCircuitBreaker) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("circuit-breaker-stopped")
			return
		case <-ticker.C:
			if err := b.CheckCollateral(ctx); err != nil {
				b.logger.Error("collateral-check-error", zap.Error(err))
			}
		}
	}
}

// GetStatus returns current circuit breaker status for debugging and
// HTTP endpoints.
func (b *CollateralCircuitBreaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sum := 0.0
	for _, notional := range b.recentTrades {
		sum += notional
	}
	avg := 0.0
	if len(b.recentTrades) > 0 {
		avg = sum / float64(len(b.recentTrades))
	}

	return Status{
		Enabled:          b.enabled.Load(),
		LastCollateral:   b.lastCollateral,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgTradeNotional: avg,
		RecentTradeCount: len(b.recentTrades),
	}
}
