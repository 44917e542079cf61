package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/internal/funding"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/chain"
	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// BinanceConfig holds the USD-M futures adapter configuration.
type BinanceConfig struct {
	BaseURL    string // e.g. https://fapi.binance.com
	APIKey     string
	APISecret  string
	Chain      chain.Reader   // anchors the funding schedule to Base blocks
	Feed       *MarkPriceFeed // optional; serves funding rates without a REST round trip
	Timeout    time.Duration  // per-request deadline; 0 means 10s
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Binance implements Adapter over the USD-M futures REST API.
type Binance struct {
	baseURL   string
	apiKey    string
	apiSecret string
	chain     chain.Reader
	feed      *MarkPriceFeed
	client    *http.Client
	logger    *zap.Logger
}

// NewBinance creates the USD-M futures adapter.
func NewBinance(cfg *BinanceConfig) (*Binance, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL cannot be empty")
	}
	if cfg.Chain == nil {
		return nil, errors.New("chain reader cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Binance{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		chain:     cfg.Chain,
		feed:      cfg.Feed,
		client:    client,
		logger:    cfg.Logger,
	}, nil
}

// Venue implements Adapter.
func (b *Binance) Venue() types.Venue {
	return types.VenueBinance
}

type premiumIndexResponse struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// GetFundingRate returns the current 8h funding rate for symbol.
func (b *Binance) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	if rate, ok := b.feedFundingRate(symbol); ok {
		FundingRateGauge.WithLabelValues(string(types.VenueBinance), symbol).Set(rate)
		return rate, nil
	}

	var resp premiumIndexResponse
	err := b.get(ctx, "/fapi/v1/premiumIndex", url.Values{"symbol": {PerpSymbol(symbol)}}, false, &resp)
	if err != nil {
		return 0, classifyData(err, types.VenueBinance, "funding-rate", symbol)
	}

	rate, err := strconv.ParseFloat(resp.LastFundingRate, 64)
	if err != nil {
		return 0, classifyData(fmt.Errorf("parse funding rate %q: %w", resp.LastFundingRate, err),
			types.VenueBinance, "funding-rate", symbol)
	}

	FundingRateGauge.WithLabelValues(string(types.VenueBinance), symbol).Set(rate)
	return rate, nil
}

// feedFundingRate serves the rate from the streaming feed when the
// latest snapshot is fresh enough to trust.
func (b *Binance) feedFundingRate(symbol string) (float64, bool) {
	if b.feed == nil {
		return 0, false
	}
	update, ok := b.feed.Latest(symbol)
	if !ok || time.Since(update.ReceivedAt) > feedStaleAfter {
		return 0, false
	}
	return update.FundingRate, true
}

const feedStaleAfter = 15 * time.Second

// GetFundingSchedule returns the next settlement events expressed as
// Base block heights, anchored to the venue's 8h cadence.
func (b *Binance) GetFundingSchedule(ctx context.Context) ([]int64, error) {
	block, err := b.chain.GetBlockNumber(ctx)
	if err != nil {
		return nil, classifyData(err, types.VenueBinance, "funding-schedule", "")
	}

	return funding.NextBinanceFundingEvents(block), nil
}

// GetQuote returns the index and mark price for symbol. The venue fills
// market orders at the book, so mark price stands in for fill price.
func (b *Binance) GetQuote(ctx context.Context, symbol string, size float64) (*types.Quote, error) {
	var resp premiumIndexResponse
	err := b.get(ctx, "/fapi/v1/premiumIndex", url.Values{"symbol": {PerpSymbol(symbol)}}, false, &resp)
	if err != nil {
		return nil, classifyData(err, types.VenueBinance, "quote", symbol)
	}

	index, err := strconv.ParseFloat(resp.IndexPrice, 64)
	if err != nil {
		return nil, classifyData(fmt.Errorf("parse index price %q: %w", resp.IndexPrice, err),
			types.VenueBinance, "quote", symbol)
	}
	mark, err := strconv.ParseFloat(resp.MarkPrice, 64)
	if err != nil {
		return nil, classifyData(fmt.Errorf("parse mark price %q: %w", resp.MarkPrice, err),
			types.VenueBinance, "quote", symbol)
	}

	return &types.Quote{IndexPrice: index, FillPrice: mark}, nil
}

type positionRiskResponse struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	UpdateTime       int64  `json:"updateTime"`
}

// GetOpenPosition returns the live position for symbol, or nil when
// there is none.
func (b *Binance) GetOpenPosition(ctx context.Context, symbol string) (*types.Position, error) {
	var resp []positionRiskResponse
	err := b.get(ctx, "/fapi/v2/positionRisk", url.Values{"symbol": {PerpSymbol(symbol)}}, true, &resp)
	if err != nil {
		return nil, classifyData(err, types.VenueBinance, "open-position", symbol)
	}

	for _, p := range resp {
		if p.Symbol != PerpSymbol(symbol) {
			continue
		}

		size, err := strconv.ParseFloat(p.PositionAmt, 64)
		if err != nil {
			return nil, classifyData(fmt.Errorf("parse position size %q: %w", p.PositionAmt, err),
				types.VenueBinance, "open-position", symbol)
		}
		if size == 0 {
			return nil, nil
		}

		pnl, _ := strconv.ParseFloat(p.UnRealizedProfit, 64)

		side := types.SideLong
		if size < 0 {
			side = types.SideShort
		}

		accrued, err := b.fundingFeesSince(ctx, symbol, p.UpdateTime)
		if err != nil {
			b.logger.Warn("binance-funding-income-unavailable",
				zap.String("symbol", symbol),
				zap.Error(err))
		}

		return &types.Position{
			ID:             fmt.Sprintf("bin-%s", PerpSymbol(symbol)),
			Venue:          types.VenueBinance,
			Symbol:         symbol,
			Side:           side,
			SizeInAsset:    size,
			EntryTimestamp: time.UnixMilli(p.UpdateTime).UTC(),
			Status:         types.StatusOpen,
			RealizedPnl:    pnl,
			AccruedFunding: accrued,
		}, nil
	}

	return nil, nil
}

type incomeResponse struct {
	Income string `json:"income"`
}

// fundingFeesSince sums FUNDING_FEE income entries after startMs.
func (b *Binance) fundingFeesSince(ctx context.Context, symbol string, startMs int64) (float64, error) {
	params := url.Values{
		"symbol":     {PerpSymbol(symbol)},
		"incomeType": {"FUNDING_FEE"},
	}
	if startMs > 0 {
		params.Set("startTime", strconv.FormatInt(startMs, 10))
	}

	var resp []incomeResponse
	err := b.get(ctx, "/fapi/v1/income", params, true, &resp)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, entry := range resp {
		v, err := strconv.ParseFloat(entry.Income, 64)
		if err != nil {
			return 0, fmt.Errorf("parse income %q: %w", entry.Income, err)
		}
		total += v
	}

	return total, nil
}

type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// SubmitOrder places a market order for the signed size.
func (b *Binance) SubmitOrder(ctx context.Context, symbol string, signedSize float64) (*types.OrderResult, error) {
	side := "BUY"
	qty := signedSize
	if signedSize < 0 {
		side = "SELL"
		qty = -signedSize
	}

	params := url.Values{
		"symbol":   {PerpSymbol(symbol)},
		"side":     {side},
		"type":     {"MARKET"},
		"quantity": {strconv.FormatFloat(qty, 'f', -1, 64)},
	}

	var resp orderResponse
	err := b.post(ctx, "/fapi/v1/order", params, &resp)
	if err != nil {
		te := classify(err, types.VenueBinance, "submit-order", symbol)
		var terr *types.TradeError
		if errors.As(te, &terr) {
			terr.Size = signedSize
		}
		return nil, te
	}

	b.logger.Info("binance-order-placed",
		zap.String("symbol", symbol),
		zap.Float64("size", signedSize),
		zap.Int64("order-id", resp.OrderID))

	return &types.OrderResult{
		Success: true,
		TxRef:   strconv.FormatInt(resp.OrderID, 10),
	}, nil
}

type balanceResponse struct {
	Asset            string `json:"asset"`
	AvailableBalance string `json:"availableBalance"`
}

// GetCollateralBalance returns the free USDT futures balance. The
// account argument is unused; the API key identifies the account.
func (b *Binance) GetCollateralBalance(ctx context.Context, _ *types.CollateralAccount) (float64, error) {
	var resp []balanceResponse
	err := b.get(ctx, "/fapi/v2/balance", url.Values{}, true, &resp)
	if err != nil {
		return 0, classifyData(err, types.VenueBinance, "collateral-balance", "")
	}

	for _, entry := range resp {
		if entry.Asset != "USDT" {
			continue
		}
		balance, err := strconv.ParseFloat(entry.AvailableBalance, 64)
		if err != nil {
			return 0, classifyData(fmt.Errorf("parse balance %q: %w", entry.AvailableBalance, err),
				types.VenueBinance, "collateral-balance", "")
		}
		return balance, nil
	}

	return 0, nil
}

func (b *Binance) get(ctx context.Context, path string, params url.Values, signed bool, out interface{}) error {
	return b.do(ctx, http.MethodGet, path, params, signed, out)
}

func (b *Binance) post(ctx context.Context, path string, params url.Values, out interface{}) error {
	return b.do(ctx, http.MethodPost, path, params, true, out)
}

func (b *Binance) do(ctx context.Context, method, path string, params url.Values, signed bool, out interface{}) error {
	op := strings.TrimPrefix(path, "/")
	start := time.Now()
	defer func() {
		RequestDurationSeconds.WithLabelValues(string(types.VenueBinance), op).Observe(time.Since(start).Seconds())
	}()

	query := params.Encode()
	if signed {
		query = SignQuery(params, b.apiSecret, time.Now())
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if b.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		RequestErrorsTotal.WithLabelValues(string(types.VenueBinance), op).Inc()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		RequestErrorsTotal.WithLabelValues(string(types.VenueBinance), op).Inc()
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// PerpSymbol maps a base asset symbol to the venue's USDT perp symbol.
func PerpSymbol(symbol string) string {
	return strings.ToUpper(symbol) + "USDT"
}

// SignQuery appends a timestamp and HMAC-SHA256 signature to the query
// parameters, per the venue's signed endpoint requirements.
func SignQuery(params url.Values, secret string, now time.Time) string {
	signedParams := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			signedParams.Add(k, v)
		}
	}
	signedParams.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))

	payload := signedParams.Encode()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))

	return payload + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}
