// Package storage persists the trade log: every position state
// transition is appended as it happens, giving an audit trail the
// controller can fall back on when a venue read is inconclusive.
package storage

import (
	"context"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
)

// Store is the interface for the append-only trade log.
type Store interface {
	// AppendTransition records a position in its current state.
	AppendTransition(ctx context.Context, pos *types.Position) error

	// HasOpenPosition reports whether the log's latest transition for
	// (venue, symbol) is a non-terminal state.
	HasOpenPosition(ctx context.Context, venue types.Venue, symbol string) (bool, error)

	// Close closes the storage connection.
	Close() error
}
