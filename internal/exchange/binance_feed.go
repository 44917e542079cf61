package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	ws "github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/websocket"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MarkPriceUpdate is one tick of the streaming mark price feed.
type MarkPriceUpdate struct {
	Symbol      string
	MarkPrice   float64
	FundingRate float64
	NextFunding time.Time
	ReceivedAt  time.Time
}

// MarkPriceFeedConfig holds the streaming feed configuration.
type MarkPriceFeedConfig struct {
	WSURL   string // e.g. wss://fstream.binance.com
	Symbols []string
	Logger  *zap.Logger
}

// MarkPriceFeed streams mark prices and funding rates for the
// configured symbols over the venue's combined websocket endpoint. It
// reconnects with exponential backoff and exposes the latest snapshot
// per symbol; the scanner reads snapshots instead of polling REST.
type MarkPriceFeed struct {
	wsURL     string
	symbols   []string
	logger    *zap.Logger
	reconnect *ws.ReconnectManager

	mu     sync.RWMutex
	latest map[string]MarkPriceUpdate

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMarkPriceFeed creates the feed; call Start to begin streaming.
func NewMarkPriceFeed(cfg *MarkPriceFeedConfig) (*MarkPriceFeed, error) {
	if cfg.WSURL == "" {
		return nil, errors.New("WSURL cannot be empty")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("symbols cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &MarkPriceFeed{
		wsURL:     strings.TrimRight(cfg.WSURL, "/"),
		symbols:   cfg.Symbols,
		logger:    cfg.Logger,
		reconnect: ws.NewReconnectManager(ws.DefaultReconnectConfig(), cfg.Logger),
		latest:    make(map[string]MarkPriceUpdate),
		done:      make(chan struct{}),
	}, nil
}

// Start begins streaming in the background until ctx is cancelled or
// Close is called.
func (f *MarkPriceFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	go func() {
		defer close(f.done)

		for ctx.Err() == nil {
			err := f.streamOnce(ctx)
			if err == nil || ctx.Err() != nil {
				return
			}

			f.logger.Warn("mark-price-stream-dropped", zap.Error(err))
			FeedReconnectsTotal.WithLabelValues(string(types.VenueBinance)).Inc()

			if err := f.reconnect.Reconnect(ctx, f.probe); err != nil {
				return
			}
		}
	}()
}

// Close stops the feed and waits for the stream goroutine to exit.
func (f *MarkPriceFeed) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	<-f.done
}

// Latest returns the most recent update for symbol, if any tick has
// arrived since the feed started.
func (f *MarkPriceFeed) Latest(symbol string) (MarkPriceUpdate, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	update, ok := f.latest[PerpSymbol(symbol)]
	return update, ok
}

// probe verifies the endpoint accepts connections; the actual stream
// is re-established by the outer loop.
func (f *MarkPriceFeed) probe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.streamURL(), nil)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (f *MarkPriceFeed) streamURL() string {
	streams := make([]string, 0, len(f.symbols))
	for _, symbol := range f.symbols {
		streams = append(streams, strings.ToLower(PerpSymbol(symbol))+"@markPrice")
	}
	return fmt.Sprintf("%s/stream?streams=%s", f.wsURL, strings.Join(streams, "/"))
}

type combinedStreamMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol          string `json:"s"`
		MarkPrice       string `json:"p"`
		FundingRate     string `json:"r"`
		NextFundingTime int64  `json:"T"`
	} `json:"data"`
}

// streamOnce runs one websocket session until it errors or ctx ends.
func (f *MarkPriceFeed) streamOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	f.logger.Info("mark-price-stream-connected",
		zap.Strings("symbols", f.symbols))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var msg combinedStreamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			f.logger.Warn("mark-price-message-malformed", zap.Error(err))
			continue
		}

		mark, err := strconv.ParseFloat(msg.Data.MarkPrice, 64)
		if err != nil {
			continue
		}
		rate, err := strconv.ParseFloat(msg.Data.FundingRate, 64)
		if err != nil {
			continue
		}

		f.mu.Lock()
		f.latest[msg.Data.Symbol] = MarkPriceUpdate{
			Symbol:      msg.Data.Symbol,
			MarkPrice:   mark,
			FundingRate: rate,
			NextFunding: time.UnixMilli(msg.Data.NextFundingTime).UTC(),
			ReceivedAt:  time.Now().UTC(),
		}
		f.mu.Unlock()
	}
}
