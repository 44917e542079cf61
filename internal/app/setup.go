package app

import (
	"context"
	"fmt"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/circuitbreaker"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/estimator"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/notify"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/position"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/scanner"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/storage"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/cache"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/chain"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/config"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/healthprobe"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/httpserver"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/oracle"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	chainReader, err := chain.NewClient(cfg.BaseRPCURL, cfg.AdapterTimeout, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup chain client: %w", err)
	}

	prices, err := setupOracle(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup oracle: %w", err)
	}

	feed, err := exchange.NewMarkPriceFeed(&exchange.MarkPriceFeedConfig{
		WSURL:   cfg.BinanceWSURL,
		Symbols: cfg.Symbols,
		Logger:  logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup mark price feed: %w", err)
	}

	synthetix, binance, err := setupAdapters(cfg, chainReader, feed, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup adapters: %w", err)
	}
	adapters := map[types.Venue]exchange.Adapter{
		types.VenueSynthetix: synthetix,
		types.VenueBinance:   binance,
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	publisher := setupPublisher(cfg, logger)

	scan, err := scanner.New(&scanner.Config{
		Adapters: adapters,
		Skews:    synthetix,
		Symbols:  cfg.Symbols,
		Interval: cfg.ScanInterval,
		Logger:   logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup scanner: %w", err)
	}

	est, err := estimator.New(&estimator.Config{
		Adapters:     adapters,
		Oracle:       prices,
		Chain:        chainReader,
		NotionalUSD:  cfg.TradeNotionalUSD,
		SynthetixFee: cfg.SynthetixFee,
		BinanceFee:   cfg.BinanceFee,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup estimator: %w", err)
	}

	controller, err := position.New(&position.Config{
		Adapters:               adapters,
		Collateral:             synthetix,
		Store:                  store,
		Publisher:              publisher,
		Logger:                 logger,
		Paper:                  cfg.ExecutionMode != "live",
		SettlementPollInterval: cfg.SettlementPollInterval,
		SettlementTimeout:      cfg.SettlementTimeout,
		CloseMaxAttempts:       cfg.CloseMaxAttempts,
		CloseRetryDelay:        cfg.CloseRetryDelay,
		CloseAllWorkers:        cfg.CloseAllWorkers,
		CollateralStepDelay:    cfg.CollateralStepDelay,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup position controller: %w", err)
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   cfg.BreakerCheckInterval,
		TradeMultiplier: cfg.BreakerTradeMultiplier,
		MinAbsolute:     cfg.BreakerMinCollateral,
		HysteresisRatio: cfg.BreakerHysteresisRatio,
		Adapters:        adapters,
		Logger:          logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup circuit breaker: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Positions:     controller,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		adapters:      adapters,
		feed:          feed,
		prices:        prices,
		scanner:       scan,
		estimator:     est,
		controller:    controller,
		breaker:       breaker,
		store:         store,
		publisher:     publisher,
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupOracle(cfg *config.Config, logger *zap.Logger) (oracle.PriceSource, error) {
	priceCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	client := oracle.NewClient(cfg.PythHermesURL, logger)
	return oracle.NewCachedClient(client, priceCache, cfg.PriceCacheTTL), nil
}

func setupAdapters(cfg *config.Config, chainReader chain.Reader, feed *exchange.MarkPriceFeed, logger *zap.Logger) (*exchange.Synthetix, *exchange.Binance, error) {
	synthetix, err := exchange.NewSynthetix(&exchange.SynthetixConfig{
		RPCURL:           cfg.BaseRPCURL,
		PrivateKey:       cfg.PrivateKey,
		PerpsMarketProxy: cfg.PerpsMarketProxy,
		SpotMarketProxy:  cfg.SpotMarketProxy,
		Timeout:          cfg.AdapterTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("synthetix adapter: %w", err)
	}

	binance, err := exchange.NewBinance(&exchange.BinanceConfig{
		BaseURL:   cfg.BinanceBaseURL,
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Timeout:   cfg.AdapterTimeout,
		Chain:     chainReader,
		Feed:      feed,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("binance adapter: %w", err)
	}

	return synthetix, binance, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode == "postgres" {
		return storage.NewPostgresStore(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	}

	return storage.NewConsoleStore(logger), nil
}

func setupPublisher(cfg *config.Config, logger *zap.Logger) notify.Publisher {
	if cfg.NotifyWebhookURL != "" {
		return notify.NewWebhookPublisher(cfg.NotifyWebhookURL, logger)
	}
	return notify.NewConsolePublisher(logger)
}
