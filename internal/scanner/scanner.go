// Package scanner polls both venues for funding rates and pairs them
// into arbitrage candidates. It scans only the configured symbols; no
// market discovery happens here. Candidates flow out on a channel and
// are consumed by the orchestrator's ranking pass.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// Config holds the scanner dependencies.
type Config struct {
	Adapters map[types.Venue]exchange.Adapter
	// Skews reads the on-chain order-book imbalance; optional.
	Skews    exchange.SkewReader
	Symbols  []string
	Interval time.Duration
	Logger   *zap.Logger
}

// Scanner produces opportunities on a fixed interval.
type Scanner struct {
	adapters map[types.Venue]exchange.Adapter
	skews    exchange.SkewReader
	symbols  []string
	interval time.Duration
	logger   *zap.Logger

	out    chan types.Opportunity
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scanner.
func New(cfg *Config) (*Scanner, error) {
	if len(cfg.Adapters) < 2 {
		return nil, errors.New("scanner needs both venue adapters")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("symbols cannot be empty")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Scanner{
		adapters: cfg.Adapters,
		skews:    cfg.Skews,
		symbols:  cfg.Symbols,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		out:      make(chan types.Opportunity, len(cfg.Symbols)),
	}, nil
}

// Opportunities returns the candidate stream.
func (s *Scanner) Opportunities() <-chan types.Opportunity {
	return s.out
}

// Start begins scanning in the background until ctx is cancelled or
// Close is called. The first scan runs immediately.
func (s *Scanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.scan(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scan(ctx)
			}
		}
	}()
}

// Close stops the scanner and waits for the loop to exit.
func (s *Scanner) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// scan runs one pass and pushes candidates to the channel, dropping
// them if the consumer is behind; the next pass supersedes them anyway.
func (s *Scanner) scan(ctx context.Context) {
	start := time.Now()
	defer func() {
		ScanDurationSeconds.Observe(time.Since(start).Seconds())
	}()
	ScansTotal.Inc()

	for _, opp := range s.ScanOnce(ctx) {
		select {
		case s.out <- opp:
		default:
			s.logger.Warn("opportunity-dropped-consumer-behind",
				zap.String("symbol", opp.Symbol))
		}
	}
}

// ScanOnce polls both venues for every configured symbol and returns
// the candidates whose combined funding capture is positive. A symbol
// whose rates cannot be read on either venue is skipped for this pass.
func (s *Scanner) ScanOnce(ctx context.Context) []types.Opportunity {
	var out []types.Opportunity

	for _, symbol := range s.symbols {
		opp, ok := s.scanSymbol(ctx, symbol)
		if !ok {
			continue
		}
		out = append(out, opp)
	}

	return out
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) (types.Opportunity, bool) {
	synthetixRate, err := s.adapters[types.VenueSynthetix].GetFundingRate(ctx, symbol)
	if err != nil {
		s.logger.Warn("symbol-skipped",
			zap.String("symbol", symbol),
			zap.String("venue", string(types.VenueSynthetix)),
			zap.Error(err))
		SymbolsSkippedTotal.WithLabelValues(string(types.VenueSynthetix)).Inc()
		return types.Opportunity{}, false
	}

	binanceRate, err := s.adapters[types.VenueBinance].GetFundingRate(ctx, symbol)
	if err != nil {
		s.logger.Warn("symbol-skipped",
			zap.String("symbol", symbol),
			zap.String("venue", string(types.VenueBinance)),
			zap.Error(err))
		SymbolsSkippedTotal.WithLabelValues(string(types.VenueBinance)).Inc()
		return types.Opportunity{}, false
	}

	opp := orient(symbol, synthetixRate, binanceRate)
	opp.DetectedAt = time.Now().UTC()

	if s.skews != nil {
		skew, err := s.skews.GetSkew(ctx, symbol)
		if err != nil {
			s.logger.Debug("skew-unavailable",
				zap.String("symbol", symbol),
				zap.Error(err))
		} else {
			opp.Skew = skew
		}
	}

	if opp.RateSpread() <= 0 {
		return types.Opportunity{}, false
	}

	OpportunitiesFoundTotal.WithLabelValues(symbol).Inc()
	s.logger.Info("opportunity-found",
		zap.String("symbol", symbol),
		zap.String("long-venue", string(opp.LongExchange)),
		zap.Float64("spread", opp.RateSpread()))

	return opp, true
}

// orient picks the long venue as the one with the lower raw funding
// rate and stores both rates from the holder's receive perspective:
// the long receives the negated raw rate, the short receives it as is.
func orient(symbol string, synthetixRate, binanceRate float64) types.Opportunity {
	longVenue, longRaw := types.VenueSynthetix, synthetixRate
	shortVenue, shortRaw := types.VenueBinance, binanceRate
	if binanceRate < synthetixRate {
		longVenue, longRaw = types.VenueBinance, binanceRate
		shortVenue, shortRaw = types.VenueSynthetix, synthetixRate
	}

	return types.Opportunity{
		Symbol:           symbol,
		LongExchange:     longVenue,
		ShortExchange:    shortVenue,
		LongFundingRate:  -longRaw,
		ShortFundingRate: shortRaw,
	}
}
