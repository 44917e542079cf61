package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies trade errors by how the caller should react.
type ErrorKind string

const (
	// KindDataUnavailable: a price or funding feed is missing the
	// symbol. Skip the affected opportunity or leg and continue.
	KindDataUnavailable ErrorKind = "DATA_UNAVAILABLE"
	// KindVenueRejected: order submission was rejected. Opens fail
	// fast; closes retry within the configured bound then escalate.
	KindVenueRejected ErrorKind = "VENUE_REJECTED"
	// KindTimeout: the venue call exceeded its deadline. Treated as
	// VenueRejected for retry purposes.
	KindTimeout ErrorKind = "TIMEOUT"
	// KindInvariantViolation: zero fill price, attempted double-open
	// and the like. Always a hard stop, never retried.
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
	// KindPipelineStepFailed: a collateral provisioning step failed.
	// Remaining steps are aborted and the error surfaced.
	KindPipelineStepFailed ErrorKind = "PIPELINE_STEP_FAILED"
)

// TradeError is a classified error carrying enough context (symbol,
// venue, attempted size) to support manual remediation. Money-moving
// failures are never downgraded to a default value.
type TradeError struct {
	Kind   ErrorKind
	Venue  Venue
	Symbol string
	Size   float64
	Op     string
	Err    error
}

func (e *TradeError) Error() string {
	msg := fmt.Sprintf("%s %s %s [%s]", e.Venue, e.Op, e.Symbol, e.Kind)
	if e.Size != 0 {
		msg += fmt.Sprintf(" size=%.4f", e.Size)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error class permits another attempt.
func (e *TradeError) Retryable() bool {
	return e.Kind == KindVenueRejected || e.Kind == KindTimeout
}

// NewTradeError builds a classified trade error.
func NewTradeError(kind ErrorKind, venue Venue, op, symbol string, err error) *TradeError {
	return &TradeError{Kind: kind, Venue: venue, Op: op, Symbol: symbol, Err: err}
}

// IsKind reports whether err is (or wraps) a TradeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}
