package types

import "time"

// PositionStatus is the lifecycle state of a position. Transitions are
// one-directional (Pending -> Open -> Closing -> Closed) except that a
// Failed position is retry-eligible.
type PositionStatus string

const (
	StatusPending PositionStatus = "PENDING"
	StatusOpen    PositionStatus = "OPEN"
	StatusClosing PositionStatus = "CLOSING"
	StatusClosed  PositionStatus = "CLOSED"
	StatusFailed  PositionStatus = "FAILED"
)

// Terminal reports whether the status is an end state.
func (s PositionStatus) Terminal() bool {
	return s == StatusClosed || s == StatusFailed
}

// Position is one side of a matched trade on one venue. It is owned
// exclusively by the position controller and mutated only through its
// state-transition methods.
//
// SizeInAsset sign encodes direction: positive = long, negative = short.
type Position struct {
	ID             string         `json:"id"`
	Venue          Venue          `json:"venue"`
	Symbol         string         `json:"symbol"`
	Side           Side           `json:"side"`
	SizeInAsset    float64        `json:"size_in_asset"`
	EntryTimestamp time.Time      `json:"entry_timestamp"`
	Status         PositionStatus `json:"status"`
	RealizedPnl    float64        `json:"realized_pnl"`
	AccruedFunding float64        `json:"accrued_funding"`
	TxRef          string         `json:"tx_ref,omitempty"`
}

// MatchedPositionPair is the long and short leg of one arbitrage trade.
// At most one pair may be Open per symbol at a time across both venues.
type MatchedPositionPair struct {
	Symbol   string    `json:"symbol"`
	Long     *Position `json:"long"`
	Short    *Position `json:"short"`
	OpenedAt time.Time `json:"opened_at"`
}

// CollateralAccount is the custodial balance state on the on-chain
// venue. Created lazily the first time collateral is needed.
type CollateralAccount struct {
	WalletAddress     string
	AccountID         uint64
	CollateralBalance float64
}

// Quote is a venue price quote for a prospective order of a given size.
type Quote struct {
	IndexPrice float64
	FillPrice  float64
}

// OrderResult is the venue's acknowledgement of a submitted order.
// Success means the venue confirmed the order (for the on-chain venue,
// a transaction hash was returned).
type OrderResult struct {
	Success bool
	TxRef   string
}
