package scanner

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/exchange"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/testutil"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"go.uber.org/zap"
)

func newTestScanner(t *testing.T, synthetix, binance *testutil.MockAdapter, symbols ...string) *Scanner {
	t.Helper()

	if len(symbols) == 0 {
		symbols = []string{"ETH"}
	}

	s, err := New(&Config{
		Adapters: map[types.Venue]exchange.Adapter{
			types.VenueSynthetix: synthetix,
			types.VenueBinance:   binance,
		},
		Skews:    synthetix,
		Symbols:  symbols,
		Interval: 10 * time.Millisecond,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestScanOnceOrientsLongToLowerRate(t *testing.T) {
	// Synthetix pays longs (negative raw rate), Binance pays shorts.
	synthetix := &testutil.MockAdapter{VenueValue: types.VenueSynthetix, FundingRate: -0.0002, SkewValue: -500}
	binance := &testutil.MockAdapter{VenueValue: types.VenueBinance, FundingRate: 0.0004}

	s := newTestScanner(t, synthetix, binance)

	opps := s.ScanOnce(context.Background())
	if len(opps) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(opps))
	}

	opp := opps[0]
	if opp.LongExchange != types.VenueSynthetix {
		t.Errorf("expected long on Synthetix, got %s", opp.LongExchange)
	}
	if opp.ShortExchange != types.VenueBinance {
		t.Errorf("expected short on Binance, got %s", opp.ShortExchange)
	}

	// Receive-perspective rates: both positive here.
	if math.Abs(opp.LongFundingRate-0.0002) > 1e-12 {
		t.Errorf("expected long receive rate 0.0002, got %v", opp.LongFundingRate)
	}
	if math.Abs(opp.ShortFundingRate-0.0004) > 1e-12 {
		t.Errorf("expected short receive rate 0.0004, got %v", opp.ShortFundingRate)
	}
	if math.Abs(opp.RateSpread()-0.0006) > 1e-12 {
		t.Errorf("expected capture 0.0006, got %v", opp.RateSpread())
	}
	if opp.Skew != -500 {
		t.Errorf("expected skew -500, got %v", opp.Skew)
	}
}

func TestScanOnceFlipsOrientation(t *testing.T) {
	synthetix := &testutil.MockAdapter{VenueValue: types.VenueSynthetix, FundingRate: 0.0005}
	binance := &testutil.MockAdapter{VenueValue: types.VenueBinance, FundingRate: -0.0001}

	s := newTestScanner(t, synthetix, binance)

	opps := s.ScanOnce(context.Background())
	if len(opps) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(opps))
	}
	if opps[0].LongExchange != types.VenueBinance {
		t.Errorf("expected long on Binance, got %s", opps[0].LongExchange)
	}
}

func TestScanOnceSkipsNegativeCapture(t *testing.T) {
	// Both venues pay shorts equally: longing one of them loses.
	synthetix := &testutil.MockAdapter{VenueValue: types.VenueSynthetix, FundingRate: 0.0004}
	binance := &testutil.MockAdapter{VenueValue: types.VenueBinance, FundingRate: 0.0004}

	s := newTestScanner(t, synthetix, binance)

	if opps := s.ScanOnce(context.Background()); len(opps) != 0 {
		t.Errorf("expected no opportunities for zero capture, got %d", len(opps))
	}
}

func TestScanOnceSkipsSymbolOnRateFailure(t *testing.T) {
	synthetix := &testutil.MockAdapter{
		VenueValue:     types.VenueSynthetix,
		FundingRateErr: types.NewTradeError(types.KindDataUnavailable, types.VenueSynthetix, "funding-rate", "ETH", errors.New("rpc down")),
	}
	binance := &testutil.MockAdapter{VenueValue: types.VenueBinance, FundingRate: 0.0004}

	s := newTestScanner(t, synthetix, binance)

	if opps := s.ScanOnce(context.Background()); len(opps) != 0 {
		t.Errorf("expected symbol skipped, got %d opportunities", len(opps))
	}
}

func TestScannerStreamsAndStops(t *testing.T) {
	synthetix := &testutil.MockAdapter{VenueValue: types.VenueSynthetix, FundingRate: -0.0002}
	binance := &testutil.MockAdapter{VenueValue: types.VenueBinance, FundingRate: 0.0004}

	s := newTestScanner(t, synthetix, binance)
	s.Start(context.Background())

	select {
	case opp, ok := <-s.Opportunities():
		if !ok {
			t.Fatal("channel closed before first opportunity")
		}
		if opp.Symbol != "ETH" {
			t.Errorf("expected ETH, got %s", opp.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("no opportunity within 1s")
	}

	s.Close()

	// Channel drains and closes after Close.
	for range s.Opportunities() {
	}
}
