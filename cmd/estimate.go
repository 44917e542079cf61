package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/estimator"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/scanner"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/cache"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/chain"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/oracle"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Scan once and print the ranked funding opportunities",
	Long: `Runs a single scan pass over the configured symbols, projects the
profit of every candidate over the configured horizon, and prints the
ranking. No positions are opened.`,
	RunE: runEstimate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	venues, err := buildVenues(cfg, logger)
	if err != nil {
		return err
	}

	chainReader, err := chain.NewClient(cfg.BaseRPCURL, cfg.AdapterTimeout, logger)
	if err != nil {
		return fmt.Errorf("chain client: %w", err)
	}

	priceCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("price cache: %w", err)
	}
	prices := oracle.NewCachedClient(oracle.NewClient(cfg.PythHermesURL, logger), priceCache, cfg.PriceCacheTTL)

	scan, err := scanner.New(&scanner.Config{
		Adapters: venues.asMap(),
		Skews:    venues.synthetix,
		Symbols:  cfg.Symbols,
		Interval: cfg.ScanInterval,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("scanner: %w", err)
	}

	est, err := estimator.New(&estimator.Config{
		Adapters:     venues.asMap(),
		Oracle:       prices,
		Chain:        chainReader,
		NotionalUSD:  cfg.TradeNotionalUSD,
		SynthetixFee: cfg.SynthetixFee,
		BinanceFee:   cfg.BinanceFee,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("estimator: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opps := scan.ScanOnce(ctx)
	if len(opps) == 0 {
		fmt.Println("No funding divergence found.")
		return nil
	}

	best, bestEstimate, err := est.Rank(ctx, opps, cfg.HorizonHours)
	if err != nil {
		return fmt.Errorf("rank opportunities: %w", err)
	}
	if best == nil {
		fmt.Println("No candidate could be estimated.")
		return nil
	}

	fmt.Print(renderEstimate(best, bestEstimate, cfg.TradeNotionalUSD))
	return nil
}

// renderEstimate formats the winning candidate for terminal output.
func renderEstimate(opp *types.Opportunity, estimate *types.ProfitEstimate, notionalUSD float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Best Opportunity: %s ===\n\n", opp.Symbol)
	fmt.Fprintf(&b, "Long  %-10s receive %+.6f per period\n", opp.LongExchange, opp.LongFundingRate)
	fmt.Fprintf(&b, "Short %-10s receive %+.6f per period\n", opp.ShortExchange, opp.ShortFundingRate)
	fmt.Fprintf(&b, "Capture per period: %+.6f\n\n", opp.RateSpread())

	for venue, pnl := range estimate.PerVenuePnl {
		fmt.Fprintf(&b, "%-10s projected $%+.2f\n", venue, pnl)
	}
	fmt.Fprintf(&b, "\nTotal over %dh at $%.0f notional: $%+.2f\n",
		estimate.HorizonHours, notionalUSD, estimate.TotalProjectedPnl)

	return b.String()
}
