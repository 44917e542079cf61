package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "funding-arb",
	Short: "Cross-exchange funding rate arbitrage bot",
	Long: `Funding rate arbitrage bot between Synthetix perps on Base and
Binance USD-M futures.

The bot scans both venues for funding rate divergence, ranks candidates
by projected profit over the configured horizon, and opens delta-neutral
pairs: long on the venue paying the lower rate, short on the other.
Pairs are held until the profit horizon elapses, then closed.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: .env file not found")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
