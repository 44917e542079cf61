// Package chain provides read access to the Base chain: gas price,
// block height, and transaction cost estimates. The position controller
// uses the block height to index the on-chain funding-velocity
// integration window.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	gweiPerWei     = 1e9
	defaultTimeout = 30 * time.Second
)

// Reader is the narrow read interface the estimator and controller
// depend on.
type Reader interface {
	GetBlockNumber(ctx context.Context) (int64, error)
	GetGasPrice(ctx context.Context) (float64, error)
}

// Client reads chain state over JSON-RPC. Every call runs under the
// configured per-call deadline.
type Client struct {
	rpcURL  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a new chain client. A non-positive timeout falls
// back to 30s.
func NewClient(rpcURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		rpcURL:  rpcURL,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// GetBlockNumber returns the current chain head height.
func (c *Client) GetBlockNumber(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return 0, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	number, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}

	return int64(number), nil
}

// GetGasPrice returns the suggested gas price in gwei.
func (c *Client) GetGasPrice(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return 0, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	priceWei, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("suggest gas price: %w", err)
	}

	return WeiToGwei(priceWei.Int64()), nil
}

// TransactionCostUSD estimates the dollar cost of a transaction
// consuming totalGas, given the current ETH price.
func (c *Client) TransactionCostUSD(ctx context.Context, totalGas uint64, ethPriceUSD float64) (float64, error) {
	gasPriceGwei, err := c.GetGasPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("get gas price: %w", err)
	}

	return GasCostUSD(gasPriceGwei, totalGas, ethPriceUSD), nil
}

// WeiToGwei converts an amount in wei to gwei.
func WeiToGwei(wei int64) float64 {
	return float64(wei) / gweiPerWei
}

// GasCostUSD converts a gas budget at a gwei price into dollars.
func GasCostUSD(gasPriceGwei float64, totalGas uint64, ethPriceUSD float64) float64 {
	gasCostETH := gasPriceGwei * float64(totalGas) / gweiPerWei
	return gasCostETH * ethPriceUSD
}
