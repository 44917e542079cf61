// Package position executes and manages matched long/short pairs. The
// controller owns the position lifecycle: PENDING on submission, OPEN
// once the venue confirms settlement, CLOSING/CLOSED on the way out,
// FAILED when a venue rejects or a settlement wait expires. Every
// transition is appended to the trade log before the next step runs.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/notify"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/storage"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/waitfor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the controller dependencies and execution policy.
type Config struct {
	Adapters   map[types.Venue]exchange.Adapter
	Collateral exchange.CollateralManager
	Store      storage.Store
	Publisher  notify.Publisher
	Logger     *zap.Logger

	// Paper disables order submission; positions transition through
	// the same state machine without touching a venue.
	Paper bool

	SettlementPollInterval time.Duration
	SettlementTimeout      time.Duration
	CloseMaxAttempts       int
	CloseRetryDelay        time.Duration
	CloseAllWorkers        int
	CollateralStepDelay    time.Duration
}

// Controller opens, tracks, and closes matched pairs.
type Controller struct {
	adapters   map[types.Venue]exchange.Adapter
	collateral exchange.CollateralManager
	store      storage.Store
	publisher  notify.Publisher
	logger     *zap.Logger

	paper                  bool
	settlementPollInterval time.Duration
	settlementTimeout      time.Duration
	closeMaxAttempts       int
	closeRetryDelay        time.Duration
	closeAllWorkers        int
	collateralStepDelay    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex                 // per-symbol execution locks
	pairs map[string]*types.MatchedPositionPair  // open pairs by symbol
}

// New creates a position controller.
func New(cfg *Config) (*Controller, error) {
	if len(cfg.Adapters) == 0 {
		return nil, errors.New("adapters cannot be empty")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	settlementPoll := cfg.SettlementPollInterval
	if settlementPoll <= 0 {
		settlementPoll = 2 * time.Second
	}
	settlementTimeout := cfg.SettlementTimeout
	if settlementTimeout <= 0 {
		settlementTimeout = 60 * time.Second
	}
	closeAttempts := cfg.CloseMaxAttempts
	if closeAttempts <= 0 {
		closeAttempts = 2
	}
	closeDelay := cfg.CloseRetryDelay
	if closeDelay <= 0 {
		closeDelay = 3 * time.Second
	}
	workers := cfg.CloseAllWorkers
	if workers <= 0 {
		workers = 4
	}
	stepDelay := cfg.CollateralStepDelay
	if stepDelay <= 0 {
		stepDelay = time.Second
	}

	return &Controller{
		adapters:               cfg.Adapters,
		collateral:             cfg.Collateral,
		store:                  cfg.Store,
		publisher:              cfg.Publisher,
		logger:                 cfg.Logger,
		paper:                  cfg.Paper,
		settlementPollInterval: settlementPoll,
		settlementTimeout:      settlementTimeout,
		closeMaxAttempts:       closeAttempts,
		closeRetryDelay:        closeDelay,
		closeAllWorkers:        workers,
		collateralStepDelay:    stepDelay,
		locks:                  make(map[string]*sync.Mutex),
		pairs:                  make(map[string]*types.MatchedPositionPair),
	}, nil
}

// symbolLock returns the per-symbol execution lock, creating it lazily.
func (c *Controller) symbolLock(symbol string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[symbol] = lock
	}
	return lock
}

// OpenPair opens the matched pair described by opp, sized to size asset
// units per leg. Opening is idempotent: if either leg already exists on
// its venue, the call is a no-op returning the existing pair. Failed
// submissions are never retried; if the second leg fails after the
// first opened, the first leg is unwound to avoid naked exposure.
func (c *Controller) OpenPair(ctx context.Context, opp *types.Opportunity, size float64) (*types.MatchedPositionPair, error) {
	lock := c.symbolLock(opp.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := c.guard(ctx, opp); existing != nil || err != nil {
		return existing, err
	}

	longLeg, err := c.openLeg(ctx, opp.LongExchange, opp.Symbol, types.SignedSize(size, types.SideLong))
	if err != nil {
		return nil, err
	}

	shortLeg, err := c.openLeg(ctx, opp.ShortExchange, opp.Symbol, types.SignedSize(size, types.SideShort))
	if err != nil {
		c.unwind(ctx, longLeg)
		return nil, err
	}

	pair := &types.MatchedPositionPair{
		Symbol:   opp.Symbol,
		Long:     longLeg,
		Short:    shortLeg,
		OpenedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.pairs[opp.Symbol] = pair
	c.mu.Unlock()

	OpenPairsGauge.Inc()
	c.logger.Info("pair-opened",
		zap.String("symbol", opp.Symbol),
		zap.String("long-venue", string(opp.LongExchange)),
		zap.String("short-venue", string(opp.ShortExchange)),
		zap.Float64("size", size))

	c.publisher.Publish(ctx, notify.Notification{
		Event:   notify.EventPositionOpened,
		Symbol:  opp.Symbol,
		Message: fmt.Sprintf("opened %s: long %s / short %s, %.6f per leg", opp.Symbol, opp.LongExchange, opp.ShortExchange, size),
		At:      time.Now().UTC(),
	})

	return pair, nil
}

// guard checks both venues for a live position before opening. A venue
// read failure falls back to the trade log; a conclusive "already open"
// on either leg makes the open a no-op.
func (c *Controller) guard(ctx context.Context, opp *types.Opportunity) (*types.MatchedPositionPair, error) {
	c.mu.Lock()
	if pair, ok := c.pairs[opp.Symbol]; ok {
		c.mu.Unlock()
		c.logger.Info("open-skipped-pair-exists", zap.String("symbol", opp.Symbol))
		return pair, nil
	}
	c.mu.Unlock()

	for _, venue := range []types.Venue{opp.LongExchange, opp.ShortExchange} {
		adapter, ok := c.adapters[venue]
		if !ok {
			return nil, types.NewTradeError(types.KindInvariantViolation, venue, "open-pair", opp.Symbol,
				fmt.Errorf("no adapter for venue %s", venue))
		}

		if c.paper {
			continue
		}

		pos, err := adapter.GetOpenPosition(ctx, opp.Symbol)
		if err != nil {
			// Venue read inconclusive; the trade log is the fallback
			// source of truth.
			open, logErr := c.store.HasOpenPosition(ctx, venue, opp.Symbol)
			if logErr != nil {
				return nil, fmt.Errorf("idempotency guard for %s on %s: venue read failed (%v) and trade log failed: %w",
					opp.Symbol, venue, err, logErr)
			}
			if open {
				c.logger.Warn("open-skipped-trade-log-open",
					zap.String("symbol", opp.Symbol),
					zap.String("venue", string(venue)))
				return nil, types.NewTradeError(types.KindInvariantViolation, venue, "open-pair", opp.Symbol,
					errors.New("trade log shows an open position but venue is unreadable"))
			}
			continue
		}

		if pos != nil {
			c.logger.Info("open-skipped-position-exists",
				zap.String("symbol", opp.Symbol),
				zap.String("venue", string(venue)))
			return c.pairFromLive(ctx, opp, pos), nil
		}
	}

	return nil, nil
}

// pairFromLive reconstructs a pair from whatever live legs exist, so a
// duplicate open returns something useful instead of failing.
func (c *Controller) pairFromLive(ctx context.Context, opp *types.Opportunity, known *types.Position) *types.MatchedPositionPair {
	pair := &types.MatchedPositionPair{
		Symbol:   opp.Symbol,
		OpenedAt: known.EntryTimestamp,
	}

	legs := []*types.Position{known}
	otherVenue := opp.LongExchange
	if known.Venue == opp.LongExchange {
		otherVenue = opp.ShortExchange
	}
	if adapter, ok := c.adapters[otherVenue]; ok {
		if other, err := adapter.GetOpenPosition(ctx, opp.Symbol); err == nil && other != nil {
			legs = append(legs, other)
		}
	}

	for _, leg := range legs {
		if leg.Side == types.SideLong {
			pair.Long = leg
		} else {
			pair.Short = leg
		}
	}

	c.mu.Lock()
	c.pairs[opp.Symbol] = pair
	c.mu.Unlock()

	return pair
}

// openLeg submits one leg and waits for it to settle. There is no
// retry: a rejected or timed-out open marks the leg FAILED and returns.
func (c *Controller) openLeg(ctx context.Context, venue types.Venue, symbol string, signedSize float64) (*types.Position, error) {
	adapter := c.adapters[venue]

	side := types.SideLong
	if signedSize < 0 {
		side = types.SideShort
	}

	pos := &types.Position{
		ID:             uuid.New().String(),
		Venue:          venue,
		Symbol:         symbol,
		Side:           side,
		SizeInAsset:    signedSize,
		EntryTimestamp: time.Now().UTC(),
		Status:         types.StatusPending,
	}

	if err := c.record(ctx, pos); err != nil {
		return nil, err
	}

	if c.paper {
		pos.Status = types.StatusOpen
		pos.TxRef = "paper"
		if err := c.record(ctx, pos); err != nil {
			return nil, err
		}
		return pos, nil
	}

	premium, err := c.checkPremium(ctx, adapter, symbol, signedSize)
	if err != nil {
		c.fail(ctx, pos)
		return nil, err
	}
	c.logger.Debug("entry-premium",
		zap.String("venue", string(venue)),
		zap.String("symbol", symbol),
		zap.Float64("premium", premium))

	result, err := adapter.SubmitOrder(ctx, symbol, signedSize)
	if err != nil {
		c.fail(ctx, pos)
		return nil, fmt.Errorf("submit %s leg on %s: %w", side, venue, err)
	}
	pos.TxRef = result.TxRef

	if err := c.awaitSettlement(ctx, adapter, symbol, side); err != nil {
		c.fail(ctx, pos)
		return nil, err
	}

	pos.Status = types.StatusOpen
	if err := c.record(ctx, pos); err != nil {
		return nil, err
	}

	return pos, nil
}

// awaitSettlement polls the venue until the expected side shows up.
func (c *Controller) awaitSettlement(ctx context.Context, adapter exchange.Adapter, symbol string, side types.Side) error {
	err := waitfor.Poll(ctx, c.settlementPollInterval, c.settlementTimeout, func(ctx context.Context) (bool, error) {
		pos, err := adapter.GetOpenPosition(ctx, symbol)
		if err != nil {
			// Transient read failures keep polling.
			return false, nil
		}
		return pos != nil && pos.Side == side, nil
	})
	if errors.Is(err, waitfor.ErrDeadlineExceeded) {
		return types.NewTradeError(types.KindTimeout, adapter.Venue(), "await-settlement", symbol,
			fmt.Errorf("order not settled within %s", c.settlementTimeout))
	}
	return err
}

// unwind closes a freshly-opened leg after its counterpart failed.
// Best effort: failure leaves the leg FAILED in the log for operators.
func (c *Controller) unwind(ctx context.Context, leg *types.Position) {
	c.logger.Warn("unwinding-orphan-leg",
		zap.String("venue", string(leg.Venue)),
		zap.String("symbol", leg.Symbol))

	if _, err := c.ClosePosition(ctx, leg.Venue, leg.Symbol); err != nil {
		c.logger.Error("orphan-leg-unwind-failed",
			zap.String("venue", string(leg.Venue)),
			zap.String("symbol", leg.Symbol),
			zap.Error(err))
		c.fail(ctx, leg)
	}
}

// ClosePosition closes the position on venue for symbol. A close is
// retried once after a fixed delay if the first attempt fails with a
// retryable error; further failures mark the position FAILED. Closing
// a venue with no position is a no-op returning (nil, nil).
func (c *Controller) ClosePosition(ctx context.Context, venue types.Venue, symbol string) (*types.Position, error) {
	adapter, ok := c.adapters[venue]
	if !ok {
		return nil, types.NewTradeError(types.KindInvariantViolation, venue, "close-position", symbol,
			fmt.Errorf("no adapter for venue %s", venue))
	}

	pos, err := c.liveOrTracked(ctx, adapter, venue, symbol)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		c.logger.Info("close-skipped-no-position",
			zap.String("venue", string(venue)),
			zap.String("symbol", symbol))
		return nil, nil
	}

	pos.Status = types.StatusClosing
	if err := c.record(ctx, pos); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.closeMaxAttempts; attempt++ {
		lastErr = c.closeOnce(ctx, adapter, pos)
		if lastErr == nil {
			pos.Status = types.StatusClosed
			if err := c.record(ctx, pos); err != nil {
				return nil, err
			}

			c.dropLeg(venue, symbol)
			ClosedPositionsTotal.WithLabelValues(string(venue)).Inc()

			c.publisher.Publish(ctx, notify.Notification{
				Event:   notify.EventPositionClosed,
				Symbol:  symbol,
				Message: fmt.Sprintf("closed %s on %s after %d attempt(s)", symbol, venue, attempt),
				At:      time.Now().UTC(),
			})
			return pos, nil
		}

		var terr *types.TradeError
		retryable := errors.As(lastErr, &terr) && terr.Retryable()
		if !retryable || attempt == c.closeMaxAttempts {
			break
		}

		c.logger.Warn("close-attempt-failed",
			zap.String("venue", string(venue)),
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if err := waitfor.Sleep(ctx, c.closeRetryDelay); err != nil {
			break
		}
	}

	c.fail(ctx, pos)
	return nil, fmt.Errorf("close %s on %s failed after %d attempt(s): %w", symbol, venue, c.closeMaxAttempts, lastErr)
}

// closeOnce re-reads the live position, submits the offsetting order
// and waits for the venue to show the position gone. A position that
// is already flat counts as closed, so a retry after a lost ack does
// not double-submit.
func (c *Controller) closeOnce(ctx context.Context, adapter exchange.Adapter, pos *types.Position) error {
	if c.paper {
		return nil
	}

	live, err := adapter.GetOpenPosition(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("read position for close: %w", err)
	}
	if live == nil || live.SizeInAsset == 0 {
		return nil
	}

	if _, err := adapter.SubmitOrder(ctx, pos.Symbol, -live.SizeInAsset); err != nil {
		return err
	}

	err = waitfor.Poll(ctx, c.settlementPollInterval, c.settlementTimeout, func(ctx context.Context) (bool, error) {
		settled, err := adapter.GetOpenPosition(ctx, pos.Symbol)
		if err != nil {
			return false, nil
		}
		return settled == nil, nil
	})
	if errors.Is(err, waitfor.ErrDeadlineExceeded) {
		return types.NewTradeError(types.KindTimeout, pos.Venue, "await-close", pos.Symbol,
			fmt.Errorf("close not settled within %s", c.settlementTimeout))
	}
	return err
}

// liveOrTracked reads the venue, falling back to the in-memory pair
// for paper mode.
func (c *Controller) liveOrTracked(ctx context.Context, adapter exchange.Adapter, venue types.Venue, symbol string) (*types.Position, error) {
	if c.paper {
		c.mu.Lock()
		defer c.mu.Unlock()

		pair, ok := c.pairs[symbol]
		if !ok {
			return nil, nil
		}
		if pair.Long != nil && pair.Long.Venue == venue {
			return pair.Long, nil
		}
		if pair.Short != nil && pair.Short.Venue == venue {
			return pair.Short, nil
		}
		return nil, nil
	}

	pos, err := adapter.GetOpenPosition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("read position for close: %w", err)
	}
	return pos, nil
}

// dropLeg removes a closed leg from the tracked pair, dropping the
// pair entirely once both legs are gone.
func (c *Controller) dropLeg(venue types.Venue, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pair, ok := c.pairs[symbol]
	if !ok {
		return
	}

	if pair.Long != nil && pair.Long.Venue == venue {
		pair.Long = nil
	}
	if pair.Short != nil && pair.Short.Venue == venue {
		pair.Short = nil
	}

	if pair.Long == nil && pair.Short == nil {
		delete(c.pairs, symbol)
		OpenPairsGauge.Dec()
	}
}

// Track registers an already-open leg read back from a venue, so the
// controller can close it. Legs join the pair for their symbol by side.
func (c *Controller) Track(pos *types.Position) {
	if pos == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pair, ok := c.pairs[pos.Symbol]
	if !ok {
		pair = &types.MatchedPositionPair{
			Symbol:   pos.Symbol,
			OpenedAt: pos.EntryTimestamp,
		}
		c.pairs[pos.Symbol] = pair
		OpenPairsGauge.Inc()
	}

	if pos.Side == types.SideLong {
		pair.Long = pos
	} else {
		pair.Short = pos
	}
}

// Snapshot returns the currently tracked pairs.
func (c *Controller) Snapshot() []types.MatchedPositionPair {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.MatchedPositionPair, 0, len(c.pairs))
	for _, pair := range c.pairs {
		out = append(out, *pair)
	}
	return out
}

// record appends a transition to the trade log and notifies.
func (c *Controller) record(ctx context.Context, pos *types.Position) error {
	if err := c.store.AppendTransition(ctx, pos); err != nil {
		return fmt.Errorf("append %s transition for %s: %w", pos.Status, pos.ID, err)
	}

	c.publisher.Publish(ctx, notify.Notification{
		Event:   notify.EventTradeLogged,
		Symbol:  pos.Symbol,
		Message: fmt.Sprintf("%s %s %s -> %s", pos.Venue, pos.Symbol, pos.Side, pos.Status),
		At:      time.Now().UTC(),
	})

	TransitionsTotal.WithLabelValues(string(pos.Status)).Inc()
	return nil
}

// fail marks a position FAILED, logging rather than propagating a
// trade-log write error since the caller is already on an error path.
func (c *Controller) fail(ctx context.Context, pos *types.Position) {
	pos.Status = types.StatusFailed
	if err := c.store.AppendTransition(ctx, pos); err != nil {
		c.logger.Error("failed-transition-not-logged",
			zap.String("position-id", pos.ID),
			zap.Error(err))
	}
	TransitionsTotal.WithLabelValues(string(types.StatusFailed)).Inc()
	FailedPositionsTotal.WithLabelValues(string(pos.Venue)).Inc()
}
