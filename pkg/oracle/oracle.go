// Package oracle fetches asset prices from the Pyth Hermes API.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrPriceUnavailable is returned when the feed lacks the requested
// symbol. Callers must skip the affected opportunity, never substitute a
// default price.
var ErrPriceUnavailable = errors.New("oracle: price unavailable")

// PriceSource returns the current price of an asset in USD.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Pyth price feed IDs for the perp markets traded on both venues.
//
//nolint:gochecknoglobals // Static feed directory
var pythFeedIDs = map[string]string{
	"ETH": "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
	"BTC": "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
	"SOL": "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d",
	"OP":  "0x385f64d993f7b77d8182ed5003d97c60aa3361f3cecfe711544d2d59165e9bdf",
	"ARB": "0x3fa4252848f9f0a1480be62745a4629d9eb1322aebab8a791e344b3b9c1adcf5",
}

// Client fetches prices from a Pyth Hermes endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new oracle client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type hermesResponse struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price string `json:"price"`
			Expo  int    `json:"expo"`
		} `json:"price"`
	} `json:"parsed"`
}

// GetPrice returns the latest USD price for symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	feedID, ok := pythFeedIDs[symbol]
	if !ok {
		return 0, fmt.Errorf("no feed for %q: %w", symbol, ErrPriceUnavailable)
	}

	url := fmt.Sprintf("%s/v2/updates/price/latest?ids[]=%s&parsed=true", c.baseURL, feedID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("hermes returned status %d: %w", resp.StatusCode, ErrPriceUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	var parsed hermesResponse
	err = json.Unmarshal(body, &parsed)
	if err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Parsed) == 0 {
		return 0, fmt.Errorf("empty feed response for %q: %w", symbol, ErrPriceUnavailable)
	}

	raw := parsed.Parsed[0].Price
	price, err := scalePrice(raw.Price, raw.Expo)
	if err != nil {
		return 0, fmt.Errorf("scale price for %q: %w", symbol, err)
	}

	c.logger.Debug("oracle-price-fetched",
		zap.String("symbol", symbol),
		zap.Float64("price", price))

	return price, nil
}

// scalePrice converts Pyth's fixed-point price string into a float.
func scalePrice(mantissa string, expo int) (float64, error) {
	var m int64
	_, err := fmt.Sscanf(mantissa, "%d", &m)
	if err != nil {
		return 0, fmt.Errorf("parse mantissa %q: %w", mantissa, err)
	}

	price := float64(m) * math.Pow10(expo)
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("non-positive price %v: %w", price, ErrPriceUnavailable)
	}

	return price, nil
}
