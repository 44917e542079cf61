package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStore implements Store by pretty-printing transitions to the
// console while keeping an in-memory log for open-position queries.
// Used in paper mode and local development.
type ConsoleStore struct {
	logger *zap.Logger

	mu     sync.Mutex
	latest map[string]types.PositionStatus // venue|symbol -> last status
}

// NewConsoleStore creates a new console trade log.
func NewConsoleStore(logger *zap.Logger) *ConsoleStore {
	logger.Info("console-trade-log-initialized")
	return &ConsoleStore{
		logger: logger,
		latest: make(map[string]types.PositionStatus),
	}
}

// AppendTransition pretty-prints the transition and records it.
func (c *ConsoleStore) AppendTransition(ctx context.Context, pos *types.Position) error {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📒 TRADE LOG  %s\n", pos.Status)
	fmt.Printf("  Position: %s\n", pos.ID)
	fmt.Printf("  Venue:    %s  %s %s\n", pos.Venue, pos.Side, pos.Symbol)
	fmt.Printf("  Size:     %.6f\n", pos.SizeInAsset)
	if pos.TxRef != "" {
		fmt.Printf("  Tx:       %s\n", pos.TxRef)
	}
	if pos.Status == types.StatusClosed {
		fmt.Printf("  PnL:      $%.2f (funding $%.2f)\n", pos.RealizedPnl, pos.AccruedFunding)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	c.mu.Lock()
	c.latest[string(pos.Venue)+"|"+pos.Symbol] = pos.Status
	c.mu.Unlock()

	TransitionsTotal.WithLabelValues(string(pos.Status)).Inc()
	return nil
}

// HasOpenPosition checks the in-memory log.
func (c *ConsoleStore) HasOpenPosition(ctx context.Context, venue types.Venue, symbol string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, ok := c.latest[string(venue)+"|"+symbol]
	if !ok {
		return false, nil
	}
	return !status.Terminal(), nil
}

// Close is a no-op for console storage.
func (c *ConsoleStore) Close() error {
	c.logger.Info("closing-console-trade-log")
	return nil
}
