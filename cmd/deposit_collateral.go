package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var depositCollateralCmd = &cobra.Command{
	Use:   "deposit-collateral",
	Short: "Provision USDC into Synthetix perps margin",
	Long: `Runs the full collateral pipeline on Base:
1. Ensure the perps margin account exists
2. Approve USDC to the spot market
3. Wrap USDC into sUSDC
4. Sell sUSDC for sUSD atomically
5. Approve sUSD to the perps market
6. Deposit sUSD as perps margin

Each step is confirmed on-chain before the next one runs. The pipeline
stops at the first failed step; already-completed steps are not rolled
back and the command is safe to re-run.`,
	RunE: runDepositCollateral,
}

//nolint:gochecknoglobals // Cobra boilerplate
var depositAmount float64

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(depositCollateralCmd)
	depositCollateralCmd.Flags().Float64VarP(&depositAmount, "amount", "a", 0, "Amount of USDC to deposit (required)")
	_ = depositCollateralCmd.MarkFlagRequired("amount")
}

func runDepositCollateral(cmd *cobra.Command, args []string) error {
	if depositAmount <= 0 {
		return fmt.Errorf("amount must be positive, got %f", depositAmount)
	}

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

	controller, err := buildController(cfg, venues, logger)
	if err != nil {
		return fmt.Errorf("position controller: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Printf("Provisioning $%.2f USDC into Synthetix margin...\n", depositAmount)

	if err := controller.ProvisionCollateral(ctx, depositAmount); err != nil {
		return fmt.Errorf("provision collateral: %w", err)
	}

	fmt.Println("Collateral deposited ✅")
	return nil
}
