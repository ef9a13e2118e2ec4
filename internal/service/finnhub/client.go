package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"SignalForge/internal/domain/service"
	applogger "SignalForge/pkg/logger"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("finnhub not connected")

// Client takes short-lived last-trade snapshots from the Finnhub trade stream.
type Client struct {
	apiKey       string
	websocketURL string
	wait         time.Duration
	pingInterval time.Duration
	dialer       *websocket.Dialer
	log          *applogger.Logger
}

var _ service.PriceSnapshotter = (*Client)(nil)

type Option func(*Client)

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a snapshot client. wait bounds how long one Snapshot listens.
func New(apiKey, websocketURL string, wait, pingInterval time.Duration, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		websocketURL: websocketURL,
		wait:         wait,
		pingInterval: pingInterval,
		dialer:       websocket.DefaultDialer,
		log:          applogger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
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

// Snapshot subscribes to symbols and returns the last traded price of each
// symbol seen before every symbol has traded or the wait elapses. Symbols
// without a trade are absent from the result.
func (c *Client) Snapshot(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return prices, nil
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := subscribe(conn, symbols); err != nil {
		return nil, err
	}

	wait := c.wait
	if wait <= 0 {
		wait = 3 * time.Second
	}
	deadline := time.Now().Add(wait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	stopPing := c.pingLoop(conn)
	defer stopPing()

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	for len(prices) < len(wanted) {
		_, b, err := conn.ReadMessage()
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				break
			}
			if len(prices) > 0 {
				c.log.Warn("finnhub stream ended early", applogger.Error(err))
				break
			}
			return nil, fmt.Errorf("finnhub read: %w", err)
		}
		var m fhMessage
		if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
			continue
		}
		for _, d := range m.Data {
			if wanted[d.S] && d.P > 0 {
				prices[d.S] = d.P
			}
		}
	}

	c.log.Debug("finnhub snapshot",
		applogger.Int("requested", len(symbols)), applogger.Int("priced", len(prices)))
	return prices, nil
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	if c.apiKey == "" || c.websocketURL == "" {
		return nil, ErrNotConnected
	}
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, url.QueryEscape(c.apiKey))
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub connect: %w", err)
	}
	return conn, nil
}

func subscribe(conn *websocket.Conn, symbols []string) error {
	for _, s := range symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	return nil
}

func (c *Client) pingLoop(conn *websocket.Conn) func() {
	if c.pingInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			}
		}
	}()
	return func() { close(done) }
}
