package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var closePositionsCmd = &cobra.Command{
	Use:   "close-positions",
	Short: "Close all open positions on both venues",
	Long: `Reads the live positions for the configured symbols on both venues
and closes each one with an offsetting market order.

This command will:
1. Read open positions from Synthetix and Binance
2. Show a summary and ask for confirmation
3. Close every leg, retrying transient venue failures
4. Report any legs that could not be closed

Example:
  close-positions              # Close all positions with confirmation
  close-positions --yes        # Skip confirmation (use with caution!)
`,
	RunE: runClosePositions,
}

//nolint:gochecknoglobals // Cobra boilerplate
var skipConfirmation bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(closePositionsCmd)
	closePositionsCmd.Flags().BoolVar(&skipConfirmation, "yes", false, "Skip confirmation prompt")
}

func runClosePositions(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Track the live legs first so the controller knows what to close.
	found := 0
	for venue, adapter := range venues.asMap() {
		for _, symbol := range cfg.Symbols {
			pos, err := adapter.GetOpenPosition(ctx, symbol)
			if err != nil {
				fmt.Printf("  %s %s: read error: %v\n", venue, symbol, err)
				continue
			}
			if pos == nil {
				continue
			}
			controller.Track(pos)
			fmt.Printf("  %s %s %s %.4f\n", venue, symbol, pos.Side, pos.SizeInAsset)
			found++
		}
	}

	if found == 0 {
		fmt.Println("No open positions.")
		return nil
	}

	if !skipConfirmation {
		fmt.Printf("\nClose %d leg(s)? [y/N]: ", found)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := controller.CloseAll(ctx); err != nil {
		return fmt.Errorf("close positions: %w", err)
	}

	fmt.Printf("\nClosed %d leg(s).\n", found)
	return nil
}
