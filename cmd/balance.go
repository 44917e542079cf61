package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check free collateral on both venues",
	Long: `Display the free trading collateral on each venue:
- Synthetix: sUSD margin available in the perps account on Base
- Binance: available USDT balance on the USD-M futures account`,
	RunE: runBalances,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalances(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("=== Venue Collateral ===\n\n")

	total := 0.0
	for venue, adapter := range venues.asMap() {
		balance, err := adapter.GetCollateralBalance(ctx, nil)
		if err != nil {
			fmt.Printf("%-10s error: %v\n", venue, err)
			continue
		}
		fmt.Printf("%-10s $%.2f\n", venue, balance)
		total += balance
	}

	fmt.Printf("\nTotal: $%.2f\n", total)
	return nil
}
