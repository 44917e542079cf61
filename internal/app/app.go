// Package app wires the components together and runs the trading
// loop: scan, rank, open, hold to horizon, close.
package app

import (
	"context"
	"sync"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/circuitbreaker"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/estimator"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/notify"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/position"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/scanner"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/storage"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/config"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/healthprobe"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/httpserver"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/oracle"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	adapters   map[types.Venue]exchange.Adapter
	feed       *exchange.MarkPriceFeed
	prices     oracle.PriceSource
	scanner    *scanner.Scanner
	estimator  *estimator.Estimator
	controller *position.Controller
	breaker    *circuitbreaker.CollateralCircuitBreaker
	store      storage.Store
	publisher  notify.Publisher
	opts       *Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// DetectOnly disables position opening: the loop scans and ranks
	// but never trades.
	DetectOnly bool
}
