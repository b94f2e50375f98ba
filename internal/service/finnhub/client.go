package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"SignalPulse/internal/domain/models"
	drepo "SignalPulse/internal/domain/repository"
	"SignalPulse/pkg/logger"
)

// Client implements a MarketStream backed by the Finnhub trade WebSocket.
type Client struct {
	apiKey         string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	bufferSize     int
	log            *logger.Logger

	mu        sync.RWMutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	symbols   []string
	// feed maps Finnhub tickers back to ours.
	feed map[string]string
}

var _ drepo.MarketStream = (*Client)(nil)

type Option func(*Client)

func WithBufferSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a new Finnhub MarketStream.
func New(apiKey, websocketURL string, reconnectDelay, pingInterval time.Duration, opts ...Option) *Client {
	c := &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		bufferSize:     1024,
		log:            logger.Nop(),
		feed:           make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pingInterval <= 0 {
		c.pingInterval = 30 * time.Second
	}
	return c
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.websocketURL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("finnhub connected")
	return nil
}

// Subscribe asks for trades on symbols. Tickers Finnhub cannot stream
// (Indian equities, indices) are skipped.
func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	c.symbols = append([]string(nil), symbols...)
	c.mu.Unlock()
	return c.subscribe(ctx)
}

func (c *Client) subscribe(_ context.Context) error {
	c.mu.RLock()
	symbols := c.symbols
	c.mu.RUnlock()

	for _, s := range symbols {
		ft, ok := FeedSymbol(s)
		if !ok {
			c.log.Debug("finnhub symbol not streamable", logger.String("symbol", s))
			continue
		}
		c.mu.Lock()
		c.feed[ft] = s
		c.mu.Unlock()
		if err := c.writeJSON(map[string]string{"type": "subscribe", "symbol": ft}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		c.log.Debug("finnhub subscribed", logger.String("symbol", s), logger.String("feed", ft))
	}
	return nil
}

func (c *Client) writeJSON(v interface{}) error {
	c.mu.RLock()
	conn, ok := c.conn, c.connected
	c.mu.RUnlock()
	if conn == nil || !ok {
		return fmt.Errorf("finnhub not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) ping() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.WriteMessage(websocket.PingMessage, nil)
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// Read streams price ticks until ctx ends or the connection fails. The error
// channel receives at most one error and both channels are then closed.
func (c *Client) Read(ctx context.Context) (<-chan models.PriceTick, <-chan error) {
	ticks := make(chan models.PriceTick, c.bufferSize)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.ping()
			}
		}
	}()

	go func() {
		defer close(ticks)
		defer close(errs)

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			errs <- fmt.Errorf("finnhub conn nil")
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			var m fhMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
				continue
			}
			for _, d := range m.Data {
				tick := models.PriceTick{
					Symbol: c.ourSymbol(d.S),
					Price:  d.P,
					Volume: d.V,
					Time:   time.UnixMilli(d.T).UTC(),
				}
				select {
				case ticks <- tick:
				default:
					c.log.Warn("finnhub tick dropped", logger.String("symbol", tick.Symbol))
				}
			}
		}
	}()

	return ticks, errs
}

func (c *Client) ourSymbol(feed string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.feed[feed]; ok {
		return s
	}
	return feed
}

// Reconnect closes, waits, reconnects and resubscribes.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// FeedSymbol converts a ticker to Finnhub's naming: BTC-USD becomes
// BINANCE:BTCUSDT and EURUSD=X becomes OANDA:EUR_USD. Indian equities and
// indices have no trade stream.
func FeedSymbol(symbol string) (string, bool) {
	switch {
	case symbol == "" || strings.HasPrefix(symbol, "^") || strings.HasSuffix(symbol, ".NS"):
		return "", false
	case strings.HasSuffix(symbol, "-USD"):
		return "BINANCE:" + strings.TrimSuffix(symbol, "-USD") + "USDT", true
	case strings.HasSuffix(symbol, "=X"):
		pair := strings.TrimSuffix(symbol, "=X")
		if len(pair) != 6 {
			return "", false
		}
		return "OANDA:" + pair[:3] + "_" + pair[3:], true
	default:
		return symbol, true
	}
}
