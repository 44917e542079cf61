package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

type stubChain struct {
	block int64
	err   error
}

func (s *stubChain) GetBlockNumber(ctx context.Context) (int64, error) {
	return s.block, s.err
}

func (s *stubChain) GetGasPrice(ctx context.Context) (float64, error) {
	return 0.05, nil
}

func newTestBinance(t *testing.T, handler http.Handler) (*Binance, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	b, err := NewBinance(&BinanceConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		APISecret: "test-secret",
		Chain:     &stubChain{block: 13_700_000},
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	return b, server
}

func TestPerpSymbol(t *testing.T) {
	if got := PerpSymbol("ETH"); got != "ETHUSDT" {
		t.Errorf("expected ETHUSDT, got %s", got)
	}
	if got := PerpSymbol("btc"); got != "BTCUSDT" {
		t.Errorf("expected BTCUSDT, got %s", got)
	}
}

func TestSignQueryDeterministic(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	params := url.Values{"symbol": {"ETHUSDT"}}

	a := SignQuery(params, "secret", now)
	b := SignQuery(params, "secret", now)
	if a != b {
		t.Error("same inputs should produce the same signed query")
	}

	if !strings.Contains(a, "timestamp=1700000000000") {
		t.Errorf("signed query missing timestamp: %s", a)
	}
	if !strings.Contains(a, "&signature=") {
		t.Errorf("signed query missing signature: %s", a)
	}

	other := SignQuery(params, "other-secret", now)
	if a == other {
		t.Error("different secrets should produce different signatures")
	}
}

func TestGetFundingRateParsesResponse(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/premiumIndex" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "ETHUSDT" {
			t.Errorf("unexpected symbol %s", got)
		}
		w.Write([]byte(`{"symbol":"ETHUSDT","markPrice":"3005.10","indexPrice":"3004.00","lastFundingRate":"0.00021","nextFundingTime":1700000000000}`))
	}))

	rate, err := b.GetFundingRate(context.Background(), "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if rate != 0.00021 {
		t.Errorf("expected 0.00021, got %v", rate)
	}
}

func TestGetFundingRateServerError(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))

	_, err := b.GetFundingRate(context.Background(), "ETH")
	if err == nil {
		t.Fatal("expected error")
	}
	if !types.IsKind(err, types.KindDataUnavailable) {
		t.Errorf("expected KindDataUnavailable, got %v", err)
	}
}

func TestGetOpenPositionFlatReturnsNil(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-MBX-APIKEY") != "test-key" {
			t.Error("expected API key header on signed endpoint")
		}
		if !strings.Contains(r.URL.RawQuery, "signature=") {
			t.Error("expected signed query")
		}
		w.Write([]byte(`[{"symbol":"ETHUSDT","positionAmt":"0","unRealizedProfit":"0","updateTime":0}]`))
	}))

	pos, err := b.GetOpenPosition(context.Background(), "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if pos != nil {
		t.Errorf("expected nil position, got %+v", pos)
	}
}

func TestGetOpenPositionShort(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v2/positionRisk":
			w.Write([]byte(`[{"symbol":"ETHUSDT","positionAmt":"-1.5","unRealizedProfit":"12.3","updateTime":1700000000000}]`))
		case "/fapi/v1/income":
			w.Write([]byte(`[{"income":"1.25"},{"income":"0.75"}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	pos, err := b.GetOpenPosition(context.Background(), "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if pos == nil {
		t.Fatal("expected position")
	}
	if pos.Side != types.SideShort {
		t.Errorf("expected short side, got %s", pos.Side)
	}
	if pos.SizeInAsset != -1.5 {
		t.Errorf("expected size -1.5, got %v", pos.SizeInAsset)
	}
	if pos.AccruedFunding != 2.0 {
		t.Errorf("expected accrued funding 2.0, got %v", pos.AccruedFunding)
	}
	if pos.Status != types.StatusOpen {
		t.Errorf("expected open status, got %s", pos.Status)
	}
}

func TestSubmitOrderMapsSignedSize(t *testing.T) {
	var gotSide, gotQty string
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSide = r.URL.Query().Get("side")
		gotQty = r.URL.Query().Get("quantity")
		w.Write([]byte(`{"orderId":42,"status":"FILLED"}`))
	}))

	result, err := b.SubmitOrder(context.Background(), "ETH", -2.5)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.TxRef != "42" {
		t.Errorf("expected tx ref 42, got %s", result.TxRef)
	}
	if gotSide != "SELL" {
		t.Errorf("expected SELL for negative size, got %s", gotSide)
	}
	if gotQty != "2.5" {
		t.Errorf("expected quantity 2.5, got %s", gotQty)
	}
}

func TestSubmitOrderRejectionCarriesContext(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-2019,"msg":"Margin is insufficient."}`, http.StatusBadRequest)
	}))

	_, err := b.SubmitOrder(context.Background(), "ETH", 1.0)
	if err == nil {
		t.Fatal("expected error")
	}

	var terr *types.TradeError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TradeError, got %T", err)
	}
	if terr.Kind != types.KindVenueRejected {
		t.Errorf("expected KindVenueRejected, got %s", terr.Kind)
	}
	if terr.Size != 1.0 {
		t.Errorf("expected size 1.0 in error context, got %v", terr.Size)
	}
	if !terr.Retryable() {
		t.Error("venue rejection should be retryable")
	}
}

func TestGetFundingScheduleAnchorsToChain(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	events, err := b.GetFundingSchedule(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, e := range events {
		if e <= 13_700_000 {
			t.Errorf("event %d should be after the current block", e)
		}
	}
}

func TestGetFundingScheduleChainError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	b, err := NewBinance(&BinanceConfig{
		BaseURL: server.URL,
		Chain:   &stubChain{err: errors.New("rpc down")},
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = b.GetFundingSchedule(context.Background())
	if !types.IsKind(err, types.KindDataUnavailable) {
		t.Errorf("expected KindDataUnavailable, got %v", err)
	}
}

func TestGetCollateralBalance(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"asset":"BNB","availableBalance":"0.5"},{"asset":"USDT","availableBalance":"10000.25"}]`))
	}))

	balance, err := b.GetCollateralBalance(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 10000.25 {
		t.Errorf("expected 10000.25, got %v", balance)
	}
}

func TestGetFundingRatePrefersFreshFeed(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("REST should not be hit when the feed snapshot is fresh")
	}))

	feed, err := NewMarkPriceFeed(&MarkPriceFeedConfig{
		WSURL:   "wss://fstream.binance.com",
		Symbols: []string{"ETH"},
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	feed.latest[PerpSymbol("ETH")] = MarkPriceUpdate{
		Symbol:      PerpSymbol("ETH"),
		FundingRate: 0.00037,
		ReceivedAt:  time.Now(),
	}
	b.feed = feed

	rate, err := b.GetFundingRate(context.Background(), "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if rate != 0.00037 {
		t.Errorf("expected feed rate 0.00037, got %v", rate)
	}
}

func TestGetFundingRateFallsBackOnStaleFeed(t *testing.T) {
	b, _ := newTestBinance(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"ETHUSDT","markPrice":"3000","indexPrice":"3000","lastFundingRate":"0.00010"}`))
	}))

	feed, err := NewMarkPriceFeed(&MarkPriceFeedConfig{
		WSURL:   "wss://fstream.binance.com",
		Symbols: []string{"ETH"},
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	feed.latest[PerpSymbol("ETH")] = MarkPriceUpdate{
		Symbol:      PerpSymbol("ETH"),
		FundingRate: 0.00037,
		ReceivedAt:  time.Now().Add(-time.Minute),
	}
	b.feed = feed

	rate, err := b.GetFundingRate(context.Background(), "ETH")
	if err != nil {
		t.Fatal(err)
	}
	if rate != 0.00010 {
		t.Errorf("expected REST rate 0.00010, got %v", rate)
	}
}
