package exchange

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	baseChainID       = 8453
	defaultGasLimit   = 1_500_000
	defaultRPCTimeout = 30 * time.Second
	usdcBaseAddress   = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	susdcMarketID     = 1 // spot market id of the wrapped USDC synth
	marginCollateral  = 0 // perps collateral id of sUSD margin
)

// Minimal hand-written ABIs for the calls this adapter makes. Kept
// inline so the adapter has no generated bindings to maintain.
const (
	perpsABIJSON = `[
		{"name":"currentFundingRate","type":"function","stateMutability":"view","inputs":[{"name":"marketId","type":"uint128"}],"outputs":[{"name":"","type":"int256"}]},
		{"name":"skew","type":"function","stateMutability":"view","inputs":[{"name":"marketId","type":"uint128"}],"outputs":[{"name":"","type":"int256"}]},
		{"name":"indexPrice","type":"function","stateMutability":"view","inputs":[{"name":"marketId","type":"uint128"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"fillPrice","type":"function","stateMutability":"view","inputs":[{"name":"marketId","type":"uint128"},{"name":"orderSize","type":"int128"},{"name":"price","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"getOpenPosition","type":"function","stateMutability":"view","inputs":[{"name":"accountId","type":"uint128"},{"name":"marketId","type":"uint128"}],"outputs":[{"name":"totalPnl","type":"int256"},{"name":"accruedFunding","type":"int256"},{"name":"positionSize","type":"int128"}]},
		{"name":"getCollateralAmount","type":"function","stateMutability":"view","inputs":[{"name":"accountId","type":"uint128"},{"name":"synthMarketId","type":"uint128"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"createAccount","type":"function","stateMutability":"nonpayable","inputs":[{"name":"requestedAccountId","type":"uint128"}],"outputs":[]},
		{"name":"modifyCollateral","type":"function","stateMutability":"nonpayable","inputs":[{"name":"accountId","type":"uint128"},{"name":"synthMarketId","type":"uint128"},{"name":"amountDelta","type":"int256"}],"outputs":[]},
		{"name":"commitOrder","type":"function","stateMutability":"nonpayable","inputs":[{"name":"commitment","type":"tuple","components":[{"name":"marketId","type":"uint128"},{"name":"accountId","type":"uint128"},{"name":"sizeDelta","type":"int128"},{"name":"settlementStrategyId","type":"uint128"},{"name":"acceptablePrice","type":"uint256"},{"name":"trackingCode","type":"bytes32"},{"name":"referrer","type":"address"}]}],"outputs":[]}
	]`

	spotABIJSON = `[
		{"name":"wrap","type":"function","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"uint128"},{"name":"wrapAmount","type":"uint256"},{"name":"minAmountReceived","type":"uint256"}],"outputs":[]},
		{"name":"sell","type":"function","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"uint128"},{"name":"synthAmount","type":"uint256"},{"name":"minUsdAmount","type":"uint256"},{"name":"referrer","type":"address"}],"outputs":[]}
	]`

	erc20ABIJSON = `[
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`
)

// SynthetixConfig holds the on-chain adapter configuration.
type SynthetixConfig struct {
	RPCURL           string
	PrivateKey       string // hex; empty means read-only adapter
	PerpsMarketProxy string
	SpotMarketProxy  string
	AccountID        uint64        // existing margin account; 0 means create lazily
	Timeout          time.Duration // per-call RPC deadline; 0 means defaultRPCTimeout
	Logger           *zap.Logger
}

// Synthetix talks to the perps and spot market proxies on Base.
type Synthetix struct {
	rpcURL     string
	privateKey *ecdsa.PrivateKey
	wallet     common.Address
	perpsProxy common.Address
	spotProxy  common.Address
	usdc       common.Address
	perpsABI   abi.ABI
	spotABI    abi.ABI
	erc20ABI   abi.ABI
	timeout    time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	accountID uint64
	account   *types.CollateralAccount
}

// NewSynthetix creates the on-chain adapter.
func NewSynthetix(cfg *SynthetixConfig) (*Synthetix, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("RPCURL cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	perpsABI, err := abi.JSON(strings.NewReader(perpsABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse perps ABI: %w", err)
	}
	spotABI, err := abi.JSON(strings.NewReader(spotABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse spot ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}

	s := &Synthetix{
		rpcURL:     cfg.RPCURL,
		perpsProxy: common.HexToAddress(cfg.PerpsMarketProxy),
		spotProxy:  common.HexToAddress(cfg.SpotMarketProxy),
		usdc:       common.HexToAddress(usdcBaseAddress),
		perpsABI:   perpsABI,
		spotABI:    spotABI,
		erc20ABI:   erc20ABI,
		timeout:    cfg.Timeout,
		accountID:  cfg.AccountID,
		logger:     cfg.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = defaultRPCTimeout
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		s.privateKey = key
		s.wallet = crypto.PubkeyToAddress(key.PublicKey)
	}

	return s, nil
}

// Venue implements Adapter.
func (s *Synthetix) Venue() types.Venue {
	return types.VenueSynthetix
}

// GetFundingRate returns the current funding rate for symbol. The venue
// reports a 24h rate; it is normalized to the 8h settlement convention
// the arbitrage legs are compared in.
func (s *Synthetix) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	m, ok := MarketFor(symbol)
	if !ok {
		return 0, types.NewTradeError(types.KindDataUnavailable, types.VenueSynthetix, "funding-rate", symbol,
			fmt.Errorf("unknown market %q", symbol))
	}

	out, err := s.call(ctx, s.perpsProxy, s.perpsABI, "currentFundingRate", marketArg(m.MarketID))
	if err != nil {
		return 0, classifyData(err, types.VenueSynthetix, "funding-rate", symbol)
	}

	rate24h := wadToFloat(out[0].(*big.Int))
	return NormalizeDailyRate(rate24h), nil
}

// GetSkew implements SkewReader.
func (s *Synthetix) GetSkew(ctx context.Context, symbol string) (float64, error) {
	m, ok := MarketFor(symbol)
	if !ok {
		return 0, types.NewTradeError(types.KindDataUnavailable, types.VenueSynthetix, "skew", symbol,
			fmt.Errorf("unknown market %q", symbol))
	}

	out, err := s.call(ctx, s.perpsProxy, s.perpsABI, "skew", marketArg(m.MarketID))
	if err != nil {
		return 0, classifyData(err, types.VenueSynthetix, "skew", symbol)
	}

	return wadToFloat(out[0].(*big.Int)), nil
}

// GetFundingSchedule implements Adapter. Funding accrues every block on
// this venue, so there are no discrete settlement events.
func (s *Synthetix) GetFundingSchedule(ctx context.Context) ([]int64, error) {
	return nil, nil
}

// GetQuote returns index and projected fill price for a signed size.
func (s *Synthetix) GetQuote(ctx context.Context, symbol string, size float64) (*types.Quote, error) {
	m, ok := MarketFor(symbol)
	if !ok {
		return nil, types.NewTradeError(types.KindDataUnavailable, types.VenueSynthetix, "quote", symbol,
			fmt.Errorf("unknown market %q", symbol))
	}

	out, err := s.call(ctx, s.perpsProxy, s.perpsABI, "indexPrice", marketArg(m.MarketID))
	if err != nil {
		return nil, classifyData(err, types.VenueSynthetix, "quote", symbol)
	}
	indexWad := out[0].(*big.Int)

	out, err = s.call(ctx, s.perpsProxy, s.perpsABI, "fillPrice", marketArg(m.MarketID), floatToWad(size), indexWad)
	if err != nil {
		return nil, classifyData(err, types.VenueSynthetix, "quote", symbol)
	}

	return &types.Quote{
		IndexPrice: wadToFloat(indexWad),
		FillPrice:  wadToFloat(out[0].(*big.Int)),
	}, nil
}

// GetOpenPosition returns the live position for symbol, or nil when
// there is none (including before any margin account exists).
func (s *Synthetix) GetOpenPosition(ctx context.Context, symbol string) (*types.Position, error) {
	m, ok := MarketFor(symbol)
	if !ok {
		return nil, types.NewTradeError(types.KindDataUnavailable, types.VenueSynthetix, "open-position", symbol,
			fmt.Errorf("unknown market %q", symbol))
	}

	s.mu.Lock()
	accountID := s.accountID
	s.mu.Unlock()
	if accountID == 0 {
		return nil, nil
	}

	out, err := s.call(ctx, s.perpsProxy, s.perpsABI, "getOpenPosition", marketArg(accountID), marketArg(m.MarketID))
	if err != nil {
		return nil, classifyData(err, types.VenueSynthetix, "open-position", symbol)
	}

	size := wadToFloat(out[2].(*big.Int))
	if size == 0 {
		return nil, nil
	}

	side := types.SideLong
	if size < 0 {
		side = types.SideShort
	}

	return &types.Position{
		ID:             fmt.Sprintf("snx-%d-%s", accountID, symbol),
		Venue:          types.VenueSynthetix,
		Symbol:         symbol,
		Side:           side,
		SizeInAsset:    size,
		Status:         types.StatusOpen,
		RealizedPnl:    wadToFloat(out[0].(*big.Int)),
		AccruedFunding: wadToFloat(out[1].(*big.Int)),
	}, nil
}

// SubmitOrder commits a market order against the async order flow. The
// returned TxRef is the commitment transaction hash; settlement is
// confirmed separately by polling the open position.
func (s *Synthetix) SubmitOrder(ctx context.Context, symbol string, signedSize float64) (*types.OrderResult, error) {
	m, ok := MarketFor(symbol)
	if !ok {
		return nil, types.NewTradeError(types.KindVenueRejected, types.VenueSynthetix, "submit-order", symbol,
			fmt.Errorf("unknown market %q", symbol))
	}

	account, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}

	quote, err := s.GetQuote(ctx, symbol, signedSize)
	if err != nil {
		return nil, fmt.Errorf("quote for acceptable price: %w", err)
	}

	// 1% price slippage bound in the direction of the trade.
	acceptable := quote.FillPrice * 1.01
	if signedSize < 0 {
		acceptable = quote.FillPrice * 0.99
	}

	commitment := struct {
		MarketId             *big.Int
		AccountId            *big.Int
		SizeDelta            *big.Int
		SettlementStrategyId *big.Int
		AcceptablePrice      *big.Int
		TrackingCode         [32]byte
		Referrer             common.Address
	}{
		MarketId:             marketArg(m.MarketID),
		AccountId:            marketArg(account.AccountID),
		SizeDelta:            floatToWad(signedSize),
		SettlementStrategyId: big.NewInt(0),
		AcceptablePrice:      floatToWad(acceptable),
		TrackingCode:         [32]byte{},
		Referrer:             common.Address{},
	}

	txHash, err := s.sendTx(ctx, s.perpsProxy, s.perpsABI, "commitOrder", commitment)
	if err != nil {
		te := classify(err, types.VenueSynthetix, "submit-order", symbol)
		var terr *types.TradeError
		if errors.As(te, &terr) {
			terr.Size = signedSize
		}
		return nil, te
	}

	s.logger.Info("synthetix-order-committed",
		zap.String("symbol", symbol),
		zap.Float64("size", signedSize),
		zap.String("tx", txHash))

	return &types.OrderResult{Success: true, TxRef: txHash}, nil
}

// GetCollateralBalance returns the sUSD margin balance of the account.
func (s *Synthetix) GetCollateralBalance(ctx context.Context, account *types.CollateralAccount) (float64, error) {
	if account == nil {
		return 0, types.NewTradeError(types.KindInvariantViolation, types.VenueSynthetix, "collateral-balance", "",
			errors.New("nil collateral account"))
	}

	out, err := s.call(ctx, s.perpsProxy, s.perpsABI, "getCollateralAmount",
		marketArg(account.AccountID), big.NewInt(marginCollateral))
	if err != nil {
		return 0, classifyData(err, types.VenueSynthetix, "collateral-balance", "")
	}

	return wadToFloat(out[0].(*big.Int)), nil
}

// EnsureAccount returns the margin account, creating one on first use.
func (s *Synthetix) EnsureAccount(ctx context.Context) (*types.CollateralAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account != nil {
		return s.account, nil
	}

	if s.accountID == 0 {
		requested := uint64(time.Now().UnixNano() & 0x7FFFFFFF)
		txHash, err := s.sendTx(ctx, s.perpsProxy, s.perpsABI, "createAccount", marketArg(requested))
		if err != nil {
			return nil, classify(err, types.VenueSynthetix, "create-account", "")
		}

		s.logger.Info("synthetix-account-created",
			zap.Uint64("account-id", requested),
			zap.String("tx", txHash))
		s.accountID = requested
	}

	s.account = &types.CollateralAccount{
		WalletAddress: s.wallet.Hex(),
		AccountID:     s.accountID,
	}

	return s.account, nil
}

// ApproveSpotMarket approves USDC spending by the spot market proxy.
func (s *Synthetix) ApproveSpotMarket(ctx context.Context, amount float64) error {
	_, err := s.sendTx(ctx, s.usdc, s.erc20ABI, "approve", s.spotProxy, floatToUnits(amount, 6))
	if err != nil {
		return classify(err, types.VenueSynthetix, "approve-spot", "")
	}
	return nil
}

// WrapCollateral wraps raw USDC into the venue's synthetic sUSDC.
func (s *Synthetix) WrapCollateral(ctx context.Context, amount float64) error {
	_, err := s.sendTx(ctx, s.spotProxy, s.spotABI, "wrap",
		marketArg(susdcMarketID), floatToUnits(amount, 6), big.NewInt(0))
	if err != nil {
		return classify(err, types.VenueSynthetix, "wrap-collateral", "")
	}
	return nil
}

// ExecuteAtomicOrder atomically converts between the synth and sUSD.
// Only "sell" is used by the provisioning pipeline.
func (s *Synthetix) ExecuteAtomicOrder(ctx context.Context, side string, amount float64) error {
	if side != "sell" {
		return types.NewTradeError(types.KindInvariantViolation, types.VenueSynthetix, "atomic-order", "",
			fmt.Errorf("unsupported atomic order side %q", side))
	}

	_, err := s.sendTx(ctx, s.spotProxy, s.spotABI, "sell",
		marketArg(susdcMarketID), floatToWad(amount), big.NewInt(0), common.Address{})
	if err != nil {
		return classify(err, types.VenueSynthetix, "atomic-order", "")
	}
	return nil
}

// ApprovePerpsMarket approves collateral spending by the perps proxy.
func (s *Synthetix) ApprovePerpsMarket(ctx context.Context, amount float64) error {
	_, err := s.sendTx(ctx, s.usdc, s.erc20ABI, "approve", s.perpsProxy, floatToUnits(amount, 6))
	if err != nil {
		return classify(err, types.VenueSynthetix, "approve-perps", "")
	}
	return nil
}

// DepositMargin deposits sUSD into the margin account.
func (s *Synthetix) DepositMargin(ctx context.Context, amount float64) error {
	account, err := s.EnsureAccount(ctx)
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	_, err = s.sendTx(ctx, s.perpsProxy, s.perpsABI, "modifyCollateral",
		marketArg(account.AccountID), big.NewInt(marginCollateral), floatToWad(amount))
	if err != nil {
		return classify(err, types.VenueSynthetix, "deposit-margin", "")
	}
	return nil
}

// call performs a read-only contract call under the adapter deadline.
func (s *Synthetix) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	start := time.Now()
	defer func() {
		RequestDurationSeconds.WithLabelValues(string(types.VenueSynthetix), method).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, s.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		RequestErrorsTotal.WithLabelValues(string(types.VenueSynthetix), method).Inc()
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := parsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}

	return out, nil
}

// sendTx signs and broadcasts a state-changing transaction.
func (s *Synthetix) sendTx(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (string, error) {
	if s.privateKey == nil {
		return "", fmt.Errorf("adapter is read-only: no private key configured")
	}

	start := time.Now()
	defer func() {
		RequestDurationSeconds.WithLabelValues(string(types.VenueSynthetix), method).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, s.rpcURL)
	if err != nil {
		return "", fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}

	nonce, err := client.PendingNonceAt(ctx, s.wallet)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), defaultGasLimit, gasPrice, data)

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(big.NewInt(baseChainID)), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	err = client.SendTransaction(ctx, signed)
	if err != nil {
		RequestErrorsTotal.WithLabelValues(string(types.VenueSynthetix), method).Inc()
		return "", fmt.Errorf("send %s: %w", method, err)
	}

	return signed.Hash().Hex(), nil
}

// NormalizeDailyRate converts the venue's reported 24h funding rate to
// the 8h convention both legs are compared in.
func NormalizeDailyRate(rate24h float64) float64 {
	return rate24h / 3
}

func marketArg(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}

// wadToFloat converts an 18-decimal fixed-point value to a float.
func wadToFloat(wad *big.Int) float64 {
	f := new(big.Float).SetInt(wad)
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}

// floatToWad converts a float to 18-decimal fixed point.
func floatToWad(v float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(v), big.NewFloat(1e18))
	out, _ := f.Int(nil)
	return out
}

// floatToUnits converts a float to fixed point with the given decimals.
func floatToUnits(v float64, decimals int) *big.Int {
	scale := new(big.Float).SetFloat64(1)
	ten := big.NewFloat(10)
	for i := 0; i < decimals; i++ {
		scale.Mul(scale, ten)
	}

	f := new(big.Float).Mul(big.NewFloat(v), scale)
	out, _ := f.Int(nil)
	return out
}
