// Package testutil provides scripted doubles for the venue adapters
// and collaborators, shared across package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/notify"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
)

// SubmittedOrder records one SubmitOrder call.
type SubmittedOrder struct {
	Symbol string
	Size   float64
}

// MockAdapter is a scripted venue adapter. Zero value is usable; set
// the fields a test cares about.
type MockAdapter struct {
	VenueValue types.Venue

	FundingRate    float64
	FundingRateErr error

	Schedule    []int64
	ScheduleErr error

	// Positions is keyed by symbol; GetOpenPosition returns nil for
	// absent symbols. PositionQueue, when non-empty, overrides
	// Positions and pops one scripted response per call.
	Positions     map[string]*types.Position
	PositionQueue []*types.Position
	PositionErr   error

	// OrderErrQueue, when non-empty, overrides OrderErr and pops one
	// scripted error per SubmitOrder call; nil entries mean success.
	OrderResult   *types.OrderResult
	OrderErr      error
	OrderErrQueue []error

	// CloseOnSubmit removes the symbol from Positions on a successful
	// order, modelling a venue that fills instantly.
	CloseOnSubmit bool

	QuoteValue *types.Quote
	QuoteErr   error

	Balance    float64
	BalanceErr error

	SkewValue float64

	mu     sync.Mutex
	Orders []SubmittedOrder
}

func (m *MockAdapter) Venue() types.Venue { return m.VenueValue }

func (m *MockAdapter) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	return m.FundingRate, m.FundingRateErr
}

func (m *MockAdapter) GetFundingSchedule(ctx context.Context) ([]int64, error) {
	return m.Schedule, m.ScheduleErr
}

func (m *MockAdapter) GetOpenPosition(ctx context.Context, symbol string) (*types.Position, error) {
	if m.PositionErr != nil {
		return nil, m.PositionErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.PositionQueue) > 0 {
		pos := m.PositionQueue[0]
		m.PositionQueue = m.PositionQueue[1:]
		return pos, nil
	}

	return m.Positions[symbol], nil
}

func (m *MockAdapter) SubmitOrder(ctx context.Context, symbol string, signedSize float64) (*types.OrderResult, error) {
	m.mu.Lock()
	m.Orders = append(m.Orders, SubmittedOrder{Symbol: symbol, Size: signedSize})

	err := m.OrderErr
	if len(m.OrderErrQueue) > 0 {
		err = m.OrderErrQueue[0]
		m.OrderErrQueue = m.OrderErrQueue[1:]
	}
	if err == nil && m.CloseOnSubmit {
		delete(m.Positions, symbol)
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if m.OrderResult != nil {
		return m.OrderResult, nil
	}
	return &types.OrderResult{Success: true, TxRef: "mock-tx"}, nil
}

func (m *MockAdapter) GetQuote(ctx context.Context, symbol string, size float64) (*types.Quote, error) {
	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}
	if m.QuoteValue != nil {
		return m.QuoteValue, nil
	}
	return &types.Quote{IndexPrice: 3000, FillPrice: 3000}, nil
}

func (m *MockAdapter) GetCollateralBalance(ctx context.Context, account *types.CollateralAccount) (float64, error) {
	return m.Balance, m.BalanceErr
}

func (m *MockAdapter) GetSkew(ctx context.Context, symbol string) (float64, error) {
	return m.SkewValue, nil
}

// SubmittedOrders returns a copy of the recorded orders.
func (m *MockAdapter) SubmittedOrders() []SubmittedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SubmittedOrder, len(m.Orders))
	copy(out, m.Orders)
	return out
}

// MockOracle returns scripted prices per symbol.
type MockOracle struct {
	Prices map[string]float64
	Err    error
}

func (m *MockOracle) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	price, ok := m.Prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no scripted price for %s", symbol)
	}
	return price, nil
}

// MockChain returns a scripted block height and gas price.
type MockChain struct {
	Block        int64
	BlockErr     error
	GasPriceGwei float64
	GasPriceErr  error
}

func (m *MockChain) GetBlockNumber(ctx context.Context) (int64, error) {
	return m.Block, m.BlockErr
}

func (m *MockChain) GetGasPrice(ctx context.Context) (float64, error) {
	return m.GasPriceGwei, m.GasPriceErr
}

// MockStore is an in-memory trade log recording every transition.
type MockStore struct {
	AppendErr error
	OpenErr   error

	mu          sync.Mutex
	Transitions []types.Position
	latest      map[string]types.PositionStatus
}

func (m *MockStore) AppendTransition(ctx context.Context, pos *types.Position) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Transitions = append(m.Transitions, *pos)
	if m.latest == nil {
		m.latest = make(map[string]types.PositionStatus)
	}
	m.latest[string(pos.Venue)+"|"+pos.Symbol] = pos.Status
	return nil
}

func (m *MockStore) HasOpenPosition(ctx context.Context, venue types.Venue, symbol string) (bool, error) {
	if m.OpenErr != nil {
		return false, m.OpenErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.latest[string(venue)+"|"+symbol]
	if !ok {
		return false, nil
	}
	return !status.Terminal(), nil
}

func (m *MockStore) Close() error { return nil }

// StatusHistory returns the sequence of statuses recorded for a venue
// and symbol, in append order.
func (m *MockStore) StatusHistory(venue types.Venue, symbol string) []types.PositionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.PositionStatus
	for _, pos := range m.Transitions {
		if pos.Venue == venue && pos.Symbol == symbol {
			out = append(out, pos.Status)
		}
	}
	return out
}

// MockPublisher records published notifications.
type MockPublisher struct {
	mu     sync.Mutex
	Events []notify.Notification
}

func (m *MockPublisher) Publish(ctx context.Context, n notify.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, n)
}

// Published returns a copy of the recorded notifications.
func (m *MockPublisher) Published() []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]notify.Notification, len(m.Events))
	copy(out, m.Events)
	return out
}
