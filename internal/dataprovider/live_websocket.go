package dataprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxReconnectBackoff caps the exponential reconnect delay, per SPEC_FULL
// §4.5's "1s, 2s, 4s, ... capped at 60s" reconnect policy.
const maxReconnectBackoff = 60 * time.Second

// candleMessage is Hyperliquid's WebSocket "candle" channel payload shape.
type candleMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Symbol string `json:"s"`
		Open   string `json:"o"`
		High   string `json:"h"`
		Low    string `json:"l"`
		Close  string `json:"c"`
		Volume string `json:"v"`
		Time   int64  `json:"t"`
		IsOver bool   `json:"closed"`
	} `json:"data"`
}

// LiveWebSocket streams closed candles from Hyperliquid's WebSocket feed,
// reconnecting with exponential backoff on drop. Adapted from the teacher's
// MarketDataService connectBinance/readLoop/reconnectMonitor trio
// (internal/data/market_data.go), retargeted from Binance's combined-stream
// wire shape to Hyperliquid's subscribe/candle messages.
type LiveWebSocket struct {
	logger   *zap.Logger
	wsURL    string
	apiURL   string
	symbol   string
	interval string

	mu      sync.Mutex
	conn    *websocket.Conn
	events  chan eventbus.MarketEvent
	errs    chan error
	done    chan struct{}
	closing bool
}

// NewLiveWebSocket dials wsURL and subscribes to symbol's interval candles.
// It fetches no history itself: warmup bars come from the package-level
// Warmup function, which callers run separately against apiURL.
func NewLiveWebSocket(ctx context.Context, logger *zap.Logger, wsURL, apiURL, symbol, interval string) (*LiveWebSocket, error) {
	lw := &LiveWebSocket{
		logger:   logger,
		wsURL:    wsURL,
		apiURL:   apiURL,
		symbol:   symbol,
		interval: interval,
		events:   make(chan eventbus.MarketEvent, 256),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	if err := lw.connect(ctx); err != nil {
		return nil, err
	}
	go lw.readLoop(ctx)
	return lw, nil
}

func (lw *LiveWebSocket) connect(ctx context.Context) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, lw.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dataprovider: dial %s: %w", lw.wsURL, err)
	}

	sub := map[string]any{
		"method": "subscribe",
		"subscription": map[string]any{
			"type":     "candle",
			"coin":     lw.symbol,
			"interval": lw.interval,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("dataprovider: subscribe %s: %w", lw.symbol, err)
	}

	lw.conn = conn
	lw.logger.Info("dataprovider: connected", zap.String("symbol", lw.symbol), zap.String("interval", lw.interval))
	return nil
}

// readLoop owns reconnects with exponential backoff and forwards closed
// candles onto the events channel.
func (lw *LiveWebSocket) readLoop(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-lw.done:
			return
		default:
		}

		lw.mu.Lock()
		conn := lw.conn
		lw.mu.Unlock()

		if conn == nil {
			if err := lw.connect(ctx); err != nil {
				lw.logger.Warn("dataprovider: reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				backoff = nextBackoff(backoff)
				continue
			}
			backoff = time.Second
			lw.mu.Lock()
			conn = lw.conn
			lw.mu.Unlock()
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			lw.logger.Warn("dataprovider: read error, reconnecting", zap.Error(err))
			lw.mu.Lock()
			lw.conn = nil
			lw.mu.Unlock()
			conn.Close()
			continue
		}

		bar, ok, err := decodeCandle(raw, lw.symbol)
		if err != nil {
			lw.logger.Warn("dataprovider: malformed candle message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		select {
		case lw.events <- bar:
		case <-ctx.Done():
			return
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > maxReconnectBackoff {
		return maxReconnectBackoff
	}
	return next
}

// decodeCandle parses a Hyperliquid candle message, returning ok=false for
// open (not yet closed) candles or other symbols -- only closed candles are
// forwarded, per SPEC_FULL §4.5.
func decodeCandle(raw []byte, symbol string) (eventbus.MarketEvent, bool, error) {
	var msg candleMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return eventbus.MarketEvent{}, false, err
	}
	if msg.Channel != "candle" || msg.Data.Symbol != symbol || !msg.Data.IsOver {
		return eventbus.MarketEvent{}, false, nil
	}

	open, err := decimal.NewFromString(msg.Data.Open)
	if err != nil {
		return eventbus.MarketEvent{}, false, err
	}
	high, err := decimal.NewFromString(msg.Data.High)
	if err != nil {
		return eventbus.MarketEvent{}, false, err
	}
	low, err := decimal.NewFromString(msg.Data.Low)
	if err != nil {
		return eventbus.MarketEvent{}, false, err
	}
	closePrice, err := decimal.NewFromString(msg.Data.Close)
	if err != nil {
		return eventbus.MarketEvent{}, false, err
	}
	volume, err := decimal.NewFromString(msg.Data.Volume)
	if err != nil {
		return eventbus.MarketEvent{}, false, err
	}

	bar, err := eventbus.NewBarEvent(symbol, time.UnixMilli(msg.Data.Time).UTC(), open, high, low, closePrice, volume)
	if err != nil {
		return eventbus.MarketEvent{}, false, err
	}
	return bar, true, nil
}

// NextEvent blocks until a closed candle arrives, ctx is cancelled, or the
// connection is closed.
func (lw *LiveWebSocket) NextEvent(ctx context.Context) (*eventbus.MarketEvent, error) {
	select {
	case bar, ok := <-lw.events:
		if !ok {
			return nil, ErrExhausted
		}
		return &bar, nil
	case err := <-lw.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears down the WebSocket connection and stops the read loop.
func (lw *LiveWebSocket) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.closing {
		return nil
	}
	lw.closing = true
	close(lw.done)
	if lw.conn != nil {
		return lw.conn.Close()
	}
	return nil
}

// candleSnapshotRow mirrors one row of Hyperliquid's /info candleSnapshot
// REST response, used to replay warmup history before the live stream takes
// over.
type candleSnapshotRow struct {
	Time   int64  `json:"t"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

// Warmup fetches the last n closed candles for symbol/interval from
// Hyperliquid's /info REST endpoint, ordered oldest-first -- used to
// pre-populate a strategy's moving-average windows before live trading
// begins (SPEC_FULL §4.5).
func Warmup(ctx context.Context, httpClient *http.Client, apiURL, symbol, interval string, n int) ([]eventbus.MarketEvent, error) {
	body := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      symbol,
			"interval":  interval,
			"startTime": 0,
			"endTime":   time.Now().UnixMilli(),
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/info", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataprovider: warmup request: %w", err)
	}
	defer resp.Body.Close()

	var rows []candleSnapshotRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("dataprovider: decode warmup response: %w", err)
	}

	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	bars := make([]eventbus.MarketEvent, 0, len(rows))
	for _, row := range rows {
		open, err := decimal.NewFromString(row.Open)
		if err != nil {
			return nil, err
		}
		high, err := decimal.NewFromString(row.High)
		if err != nil {
			return nil, err
		}
		low, err := decimal.NewFromString(row.Low)
		if err != nil {
			return nil, err
		}
		closePrice, err := decimal.NewFromString(row.Close)
		if err != nil {
			return nil, err
		}
		volume, err := decimal.NewFromString(row.Volume)
		if err != nil {
			return nil, err
		}
		bar, err := eventbus.NewBarEvent(symbol, time.UnixMilli(row.Time).UTC(), open, high, low, closePrice, volume)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
