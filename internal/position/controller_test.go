package position

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/notify"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/testutil"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

func fastControllerConfig(paper bool, long, short *testutil.MockAdapter, store *testutil.MockStore, pub *testutil.MockPublisher) *Config {
	return &Config{
		Adapters: map[types.Venue]exchange.Adapter{
			types.VenueSynthetix: long,
			types.VenueBinance:   short,
		},
		Store:                  store,
		Publisher:              pub,
		Logger:                 zap.NewNop(),
		Paper:                  paper,
		SettlementPollInterval: time.Millisecond,
		SettlementTimeout:      50 * time.Millisecond,
		CloseMaxAttempts:       2,
		CloseRetryDelay:        time.Millisecond,
		CloseAllWorkers:        4,
		CollateralStepDelay:    time.Millisecond,
	}
}

func TestOpenPairPaperMode(t *testing.T) {
	long := &testutil.MockAdapter{VenueValue: types.VenueSynthetix}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(true, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	opp := testutil.CreateTestOpportunity("ETH")
	pair, err := c.OpenPair(context.Background(), &opp, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	if pair.Long == nil || pair.Short == nil {
		t.Fatal("expected both legs")
	}
	if pair.Long.Status != types.StatusOpen || pair.Short.Status != types.StatusOpen {
		t.Error("expected both legs OPEN")
	}
	if pair.Long.SizeInAsset != 2.0 {
		t.Errorf("expected long size 2.0, got %v", pair.Long.SizeInAsset)
	}
	if pair.Short.SizeInAsset != -2.0 {
		t.Errorf("expected short size -2.0, got %v", pair.Short.SizeInAsset)
	}

	// No orders hit a venue in paper mode.
	if len(long.SubmittedOrders()) != 0 || len(short.SubmittedOrders()) != 0 {
		t.Error("paper mode must not submit orders")
	}

	wantHistory := []types.PositionStatus{types.StatusPending, types.StatusOpen}
	for _, venue := range []types.Venue{types.VenueSynthetix, types.VenueBinance} {
		got := store.StatusHistory(venue, "ETH")
		if len(got) != len(wantHistory) {
			t.Fatalf("%s: expected history %v, got %v", venue, wantHistory, got)
		}
		for i := range wantHistory {
			if got[i] != wantHistory[i] {
				t.Errorf("%s: expected history %v, got %v", venue, wantHistory, got)
			}
		}
	}

	var opened, logged int
	for _, e := range pub.Published() {
		switch e.Event {
		case notify.EventPositionOpened:
			opened++
		case notify.EventTradeLogged:
			logged++
		}
	}
	if opened != 1 {
		t.Errorf("expected one position_opened notification, got %d", opened)
	}
	// Two legs each log PENDING and OPEN.
	if logged != 4 {
		t.Errorf("expected four trade_logged notifications, got %d", logged)
	}

	if len(c.Snapshot()) != 1 {
		t.Error("expected one tracked pair")
	}
}

func TestOpenPairIdempotent(t *testing.T) {
	existing := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0)
	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		Positions:  map[string]*types.Position{"ETH": existing},
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	opp := testutil.CreateTestOpportunity("ETH")
	pair, err := c.OpenPair(context.Background(), &opp, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if pair == nil || pair.Long == nil {
		t.Fatal("expected existing pair returned")
	}
	if pair.Long.ID != existing.ID {
		t.Error("expected the live position, not a new one")
	}

	if len(long.SubmittedOrders()) != 0 || len(short.SubmittedOrders()) != 0 {
		t.Error("duplicate open must not submit orders")
	}
	if len(store.Transitions) != 0 {
		t.Error("duplicate open must not write transitions")
	}
}

func TestOpenPairGuardFallsBackToTradeLog(t *testing.T) {
	long := &testutil.MockAdapter{
		VenueValue:  types.VenueSynthetix,
		PositionErr: errors.New("rpc unreachable"),
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	// Trade log says a leg is still open.
	store.AppendTransition(context.Background(), testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0))

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	opp := testutil.CreateTestOpportunity("ETH")
	_, err = c.OpenPair(context.Background(), &opp, 2.0)
	if !types.IsKind(err, types.KindInvariantViolation) {
		t.Errorf("expected KindInvariantViolation, got %v", err)
	}
	if len(long.SubmittedOrders()) != 0 {
		t.Error("must not submit when the trade log shows an open leg")
	}
}

func TestOpenPairLiveSettles(t *testing.T) {
	longPos := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0)
	shortPos := testutil.CreateTestPosition(types.VenueBinance, "ETH", types.SideShort, 2.0)

	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		// Guard read sees nothing, settlement poll sees the fill.
		PositionQueue: []*types.Position{nil, longPos},
	}
	short := &testutil.MockAdapter{
		VenueValue:    types.VenueBinance,
		PositionQueue: []*types.Position{nil, shortPos},
	}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	opp := testutil.CreateTestOpportunity("ETH")
	pair, err := c.OpenPair(context.Background(), &opp, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if pair.Long.Status != types.StatusOpen || pair.Short.Status != types.StatusOpen {
		t.Error("expected both legs OPEN after settlement")
	}

	longOrders := long.SubmittedOrders()
	shortOrders := short.SubmittedOrders()
	if len(longOrders) != 1 || longOrders[0].Size != 2.0 {
		t.Errorf("expected one long order of 2.0, got %+v", longOrders)
	}
	if len(shortOrders) != 1 || shortOrders[0].Size != -2.0 {
		t.Errorf("expected one short order of -2.0, got %+v", shortOrders)
	}
}

func TestOpenPairSecondLegFailureUnwindsFirst(t *testing.T) {
	longPos := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0)

	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		// guard, settle, close read, close attempt read, close poll
		PositionQueue: []*types.Position{nil, longPos, longPos, longPos, nil},
	}
	short := &testutil.MockAdapter{
		VenueValue: types.VenueBinance,
		OrderErr: types.NewTradeError(types.KindVenueRejected, types.VenueBinance, "submit-order", "ETH",
			errors.New("margin insufficient")),
	}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	opp := testutil.CreateTestOpportunity("ETH")
	_, err = c.OpenPair(context.Background(), &opp, 2.0)
	if err == nil {
		t.Fatal("expected error when the short leg fails")
	}

	longHistory := store.StatusHistory(types.VenueSynthetix, "ETH")
	if len(longHistory) == 0 || longHistory[len(longHistory)-1] != types.StatusClosed {
		t.Errorf("expected long leg unwound to CLOSED, history %v", longHistory)
	}

	shortHistory := store.StatusHistory(types.VenueBinance, "ETH")
	if len(shortHistory) == 0 || shortHistory[len(shortHistory)-1] != types.StatusFailed {
		t.Errorf("expected short leg FAILED, history %v", shortHistory)
	}

	// There is no open retry: the failed leg got exactly one order.
	if len(short.SubmittedOrders()) != 1 {
		t.Errorf("expected one short submission, got %d", len(short.SubmittedOrders()))
	}
}

func TestOpenPairZeroFillPriceRejected(t *testing.T) {
	long := &testutil.MockAdapter{
		VenueValue:    types.VenueSynthetix,
		PositionQueue: []*types.Position{nil},
		QuoteValue:    &types.Quote{IndexPrice: 3000, FillPrice: 0},
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	opp := testutil.CreateTestOpportunity("ETH")
	_, err = c.OpenPair(context.Background(), &opp, 2.0)
	if !types.IsKind(err, types.KindInvariantViolation) {
		t.Errorf("expected KindInvariantViolation for zero fill price, got %v", err)
	}
	if len(long.SubmittedOrders()) != 0 {
		t.Error("must not submit on a garbage quote")
	}
}

func TestOpenPairSettlementTimeout(t *testing.T) {
	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		// Venue never shows the fill.
		Positions: map[string]*types.Position{},
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	opp := testutil.CreateTestOpportunity("ETH")
	_, err = c.OpenPair(context.Background(), &opp, 2.0)
	if !types.IsKind(err, types.KindTimeout) {
		t.Errorf("expected KindTimeout, got %v", err)
	}

	longHistory := store.StatusHistory(types.VenueSynthetix, "ETH")
	if len(longHistory) == 0 || longHistory[len(longHistory)-1] != types.StatusFailed {
		t.Errorf("expected FAILED after settlement timeout, history %v", longHistory)
	}
}

func TestClosePositionNoPositionIsNoOp(t *testing.T) {
	long := &testutil.MockAdapter{VenueValue: types.VenueSynthetix}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	pos, err := c.ClosePosition(context.Background(), types.VenueSynthetix, "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if pos != nil {
		t.Error("expected no-op close to return nil")
	}
	if len(long.SubmittedOrders()) != 0 {
		t.Error("no-op close must not submit orders")
	}
}

func TestClosePositionRetriesThenFails(t *testing.T) {
	pos := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0)
	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		// Initial read plus one re-read per attempt.
		PositionQueue: []*types.Position{pos, pos, pos},
		OrderErr: types.NewTradeError(types.KindVenueRejected, types.VenueSynthetix, "submit-order", "ETH",
			errors.New("nonce too low")),
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.ClosePosition(context.Background(), types.VenueSynthetix, "ETH")
	if err == nil {
		t.Fatal("expected error after exhausting close attempts")
	}
	if !strings.Contains(err.Error(), "after 2 attempt") {
		t.Errorf("error should report attempt count: %v", err)
	}

	if got := len(long.SubmittedOrders()); got != 2 {
		t.Errorf("expected exactly 2 close attempts, got %d", got)
	}

	history := store.StatusHistory(types.VenueSynthetix, "ETH")
	if len(history) < 2 || history[len(history)-1] != types.StatusFailed {
		t.Errorf("expected CLOSING then FAILED, history %v", history)
	}
}

func TestClosePositionSecondAttemptSucceeds(t *testing.T) {
	pos := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0)
	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		// Initial read, attempt 1 read, attempt 2 read, settle poll.
		PositionQueue: []*types.Position{pos, pos, pos, nil},
		OrderErrQueue: []error{types.NewTradeError(types.KindVenueRejected, types.VenueSynthetix, "submit-order", "ETH",
			errors.New("nonce too low"))},
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	closed, err := c.ClosePosition(context.Background(), types.VenueSynthetix, "ETH")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if closed == nil || closed.Status != types.StatusClosed {
		t.Errorf("expected CLOSED position, got %+v", closed)
	}

	if got := len(long.SubmittedOrders()); got != 2 {
		t.Errorf("expected exactly 2 submissions, got %d", got)
	}

	history := store.StatusHistory(types.VenueSynthetix, "ETH")
	if len(history) == 0 || history[len(history)-1] != types.StatusClosed {
		t.Errorf("expected history ending CLOSED, got %v", history)
	}
}

func TestClosePositionGoneBeforeRetryIsSuccess(t *testing.T) {
	pos := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0)
	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		// The rejected order actually landed: the retry's re-read finds
		// the position gone and must not submit again.
		PositionQueue: []*types.Position{pos, pos, nil},
		OrderErrQueue: []error{types.NewTradeError(types.KindVenueRejected, types.VenueSynthetix, "submit-order", "ETH",
			errors.New("nonce too low"))},
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	closed, err := c.ClosePosition(context.Background(), types.VenueSynthetix, "ETH")
	if err != nil {
		t.Fatalf("expected idempotent success, got %v", err)
	}
	if closed == nil || closed.Status != types.StatusClosed {
		t.Errorf("expected CLOSED position, got %+v", closed)
	}

	if got := len(long.SubmittedOrders()); got != 1 {
		t.Errorf("expected exactly 1 submission, got %d", got)
	}
}

func TestClosePositionNonRetryableFailsFast(t *testing.T) {
	pos := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 2.0)
	long := &testutil.MockAdapter{
		VenueValue:    types.VenueSynthetix,
		PositionQueue: []*types.Position{pos, pos},
		OrderErr: types.NewTradeError(types.KindInvariantViolation, types.VenueSynthetix, "submit-order", "ETH",
			errors.New("size mismatch")),
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.ClosePosition(context.Background(), types.VenueSynthetix, "ETH")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := len(long.SubmittedOrders()); got != 1 {
		t.Errorf("non-retryable failure must not retry, got %d attempts", got)
	}
}

func TestCloseAllPaper(t *testing.T) {
	long := &testutil.MockAdapter{VenueValue: types.VenueSynthetix}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(true, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	for _, symbol := range []string{"ETH", "BTC"} {
		opp := testutil.CreateTestOpportunity(symbol)
		if _, err := c.OpenPair(context.Background(), &opp, 1.0); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.CloseAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(c.Snapshot()) != 0 {
		t.Error("expected no tracked pairs after CloseAll")
	}

	for _, venue := range []types.Venue{types.VenueSynthetix, types.VenueBinance} {
		for _, symbol := range []string{"ETH", "BTC"} {
			history := store.StatusHistory(venue, symbol)
			if len(history) == 0 || history[len(history)-1] != types.StatusClosed {
				t.Errorf("%s/%s: expected CLOSED, history %v", venue, symbol, history)
			}
		}
	}
}

func TestCloseAllPartialFailure(t *testing.T) {
	ethLong := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 1.0)
	btcLong := testutil.CreateTestPosition(types.VenueSynthetix, "BTC", types.SideLong, 0.1)

	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		Positions: map[string]*types.Position{
			"ETH": ethLong,
			"BTC": btcLong,
		},
		OrderErr: types.NewTradeError(types.KindInvariantViolation, types.VenueSynthetix, "submit-order", "",
			errors.New("venue halted")),
	}
	short := &testutil.MockAdapter{VenueValue: types.VenueBinance}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	c.pairs["ETH"] = &types.MatchedPositionPair{Symbol: "ETH", Long: ethLong}
	c.pairs["BTC"] = &types.MatchedPositionPair{Symbol: "BTC", Long: btcLong}

	err = c.CloseAll(context.Background())
	if err == nil {
		t.Fatal("expected partial failure error")
	}
	if !strings.Contains(err.Error(), "2 of 2 legs failed") {
		t.Errorf("error should aggregate failures: %v", err)
	}
}

func TestCloseAllOneLegFailingClosesTheRest(t *testing.T) {
	ethLong := testutil.CreateTestPosition(types.VenueSynthetix, "ETH", types.SideLong, 1.0)
	solLong := testutil.CreateTestPosition(types.VenueSynthetix, "SOL", types.SideLong, 20.0)
	btcShort := testutil.CreateTestPosition(types.VenueBinance, "BTC", types.SideShort, 0.1)

	long := &testutil.MockAdapter{
		VenueValue: types.VenueSynthetix,
		Positions: map[string]*types.Position{
			"ETH": ethLong,
			"SOL": solLong,
		},
		CloseOnSubmit: true,
	}
	short := &testutil.MockAdapter{
		VenueValue: types.VenueBinance,
		Positions:  map[string]*types.Position{"BTC": btcShort},
		OrderErr: types.NewTradeError(types.KindInvariantViolation, types.VenueBinance, "submit-order", "BTC",
			errors.New("venue halted")),
	}
	store := &testutil.MockStore{}
	pub := &testutil.MockPublisher{}

	c, err := New(fastControllerConfig(false, long, short, store, pub))
	if err != nil {
		t.Fatal(err)
	}

	c.pairs["ETH"] = &types.MatchedPositionPair{Symbol: "ETH", Long: ethLong}
	c.pairs["SOL"] = &types.MatchedPositionPair{Symbol: "SOL", Long: solLong}
	c.pairs["BTC"] = &types.MatchedPositionPair{Symbol: "BTC", Short: btcShort}

	err = c.CloseAll(context.Background())
	if err == nil {
		t.Fatal("expected partial failure error")
	}
	if !strings.Contains(err.Error(), "1 of 3 legs failed") {
		t.Errorf("error should report the single failed leg: %v", err)
	}

	for _, symbol := range []string{"ETH", "SOL"} {
		history := store.StatusHistory(types.VenueSynthetix, symbol)
		if len(history) == 0 || history[len(history)-1] != types.StatusClosed {
			t.Errorf("%s: expected CLOSED despite the failing leg, history %v", symbol, history)
		}
	}

	btcHistory := store.StatusHistory(types.VenueBinance, "BTC")
	if len(btcHistory) == 0 || btcHistory[len(btcHistory)-1] != types.StatusFailed {
		t.Errorf("BTC: expected FAILED, history %v", btcHistory)
	}

	// Only the failed pair is still tracked.
	if got := len(c.Snapshot()); got != 1 {
		t.Errorf("expected 1 tracked pair after close-all, got %d", got)
	}
}
