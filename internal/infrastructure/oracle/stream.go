package oracle

import (
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TickerStream subscribes to a websocket price feed and fans ticks out to
// registered callbacks. Used as the mark-price channel for funding when the
// deployment has a streaming source next to the oracle webhook.
type TickerStream struct {
	wsURL  string
	logger *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	callbacks []func(asset string, price float64, timestamp int64)
}

func NewTickerStream(wsURL string, logger *zap.Logger) *TickerStream {
	return &TickerStream{
		wsURL:  wsURL,
		logger: logger,
	}
}

func (t *TickerStream) OnPriceUpdate(callback func(asset string, price float64, timestamp int64)) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, callback)
	t.mu.Unlock()
}

// Subscribe dials on first use, then sends a subscribe op for the assets.
func (t *TickerStream) Subscribe(assets []string) error {
	if len(assets) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		c, _, err := websocket.DefaultDialer.Dial(t.wsURL, nil)
		if err != nil {
			return err
		}
		t.conn = c
		go t.readLoop(c)
	}

	args := make([]string, len(assets))
	for i, a := range assets {
		args[i] = "ticker." + a
	}
	return t.conn.WriteJSON(map[string]any{
		"op":   "subscribe",
		"args": args,
	})
}

func (t *TickerStream) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *TickerStream) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
	}()

	for {
		var msg struct {
			Topic string `json:"topic"`
			Data  struct {
				Price     string `json:"price"`
				Decimals  int    `json:"decimals"`
				Timestamp int64  `json:"timestamp"`
			} `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.logger.Error("ticker stream read error", zap.Error(err))
			return
		}

		if !strings.HasPrefix(msg.Topic, "ticker.") {
			continue
		}
		asset := strings.TrimPrefix(msg.Topic, "ticker.")

		price, err := ParseScaledPrice(msg.Data.Price, msg.Data.Decimals)
		if err != nil || price <= 0 {
			continue
		}

		t.mu.Lock()
		callbacks := append([]func(string, float64, int64){}, t.callbacks...)
		t.mu.Unlock()

		for _, cb := range callbacks {
			cb(asset, price, msg.Data.Timestamp)
		}
	}
}
