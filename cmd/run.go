package cmd

import (
	"fmt"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/app"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the funding arbitrage bot",
	Long: `Starts the funding arbitrage bot, which will:
1. Scan Synthetix and Binance funding rates for the configured symbols
2. Rank divergences by projected profit over the horizon
3. Open a delta-neutral pair when the best candidate clears fees and gas
4. Close the pair once the profit horizon elapses

Use --detect-only to scan and rank without opening positions.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("detect-only", "d", false, "Scan and rank without opening positions")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	detectOnly, _ := cmd.Flags().GetBool("detect-only")

	opts := &app.Options{
		DetectOnly: detectOnly,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
