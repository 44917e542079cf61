package cmd

import (
	"fmt"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/notify"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/position"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/storage"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/chain"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/config"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// venueSet holds the adapters the operational commands act on.
type venueSet struct {
	synthetix *exchange.Synthetix
	binance   *exchange.Binance
}

func (v *venueSet) asMap() map[types.Venue]exchange.Adapter {
	return map[types.Venue]exchange.Adapter{
		types.VenueSynthetix: v.synthetix,
		types.VenueBinance:   v.binance,
	}
}

// buildVenues wires the two venue adapters from config, without the
// rest of the application.
func buildVenues(cfg *config.Config, logger *zap.Logger) (*venueSet, error) {
	chainReader, err := chain.NewClient(cfg.BaseRPCURL, cfg.AdapterTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("chain client: %w", err)
	}

	synthetix, err := exchange.NewSynthetix(&exchange.SynthetixConfig{
		RPCURL:           cfg.BaseRPCURL,
		PrivateKey:       cfg.PrivateKey,
		PerpsMarketProxy: cfg.PerpsMarketProxy,
		SpotMarketProxy:  cfg.SpotMarketProxy,
		Timeout:          cfg.AdapterTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("synthetix adapter: %w", err)
	}

	binance, err := exchange.NewBinance(&exchange.BinanceConfig{
		BaseURL:   cfg.BinanceBaseURL,
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Timeout:   cfg.AdapterTimeout,
		Chain:     chainReader,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("binance adapter: %w", err)
	}

	return &venueSet{synthetix: synthetix, binance: binance}, nil
}

// buildController wires a position controller over the venue adapters,
// logging trade transitions to the console.
func buildController(cfg *config.Config, venues *venueSet, logger *zap.Logger) (*position.Controller, error) {
	return position.New(&position.Config{
		Adapters:               venues.asMap(),
		Collateral:             venues.synthetix,
		Store:                  storage.NewConsoleStore(logger),
		Publisher:              notify.NewConsolePublisher(logger),
		Logger:                 logger,
		Paper:                  cfg.ExecutionMode != "live",
		SettlementPollInterval: cfg.SettlementPollInterval,
		SettlementTimeout:      cfg.SettlementTimeout,
		CloseMaxAttempts:       cfg.CloseMaxAttempts,
		CloseRetryDelay:        cfg.CloseRetryDelay,
		CloseAllWorkers:        cfg.CloseAllWorkers,
		CollateralStepDelay:    cfg.CollateralStepDelay,
	})
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}
