// Package iqws implements broker.Client over the brokerage's websocket API:
// one connection, JSON envelopes correlated by request id, an outbound rate
// limit so the server does not throttle us.
package iqws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"options-core/pkg/broker"
)

const replyBuffer = 1

// Options configures a live connection.
type Options struct {
	URL         string
	Email       string
	Password    string
	AccountType string // "PRACTICE" or "REAL"
}

// Client is safe for concurrent use; writes are serialized and replies are
// routed to the waiting caller by request id.
type Client struct {
	opts    Options
	dialer  *websocket.Dialer
	limiter *rate.Limiter

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pending   map[string]chan envelope
}

// New builds a client without connecting.
func New(opts Options) *Client {
	if opts.AccountType == "" {
		opts.AccountType = "PRACTICE"
	}
	return &Client{
		opts:   opts,
		dialer: websocket.DefaultDialer,
		// The brokerage throttles chatty clients; stay under 10 msg/s.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		pending: make(map[string]chan envelope),
	}
}

// Connect dials, authenticates and selects the account. Safe to call again
// after a drop; the previous connection is torn down first.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	go c.readPump(conn)

	if _, err := c.call(ctx, "ssid", authMsg{Email: c.opts.Email, Password: c.opts.Password}); err != nil {
		c.markDisconnected(conn)
		return fmt.Errorf("authenticate: %w", err)
	}
	if _, err := c.call(ctx, "change_balance", changeBalanceMsg{BalanceType: c.opts.AccountType}); err != nil {
		c.markDisconnected(conn)
		return fmt.Errorf("select %s account: %w", c.opts.AccountType, err)
	}
	log.Printf("iqws: connected, %s account selected", c.opts.AccountType)
	return nil
}

func (c *Client) CheckConnection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.connected = false
	}
	conn.Close()
}

// readPump routes inbound envelopes to waiting callers. Frames without a
// request id are server pushes and are dropped here; the polling design reads
// everything on demand.
func (c *Client) readPump(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!strings.Contains(err.Error(), "use of closed network connection") {
				log.Printf("iqws: read: %v", err)
			}
			c.markDisconnected(conn)
			c.failPending()
			return
		}
		if env.RequestID == "" {
			continue
		}
		c.mu.Lock()
		ch := c.pending[env.RequestID]
		delete(c.pending, env.RequestID)
		c.mu.Unlock()
		if ch != nil {
			ch <- env
		}
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan envelope)
	c.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

// call sends one request and waits for its correlated reply.
func (c *Client) call(ctx context.Context, name string, msg any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", name, err)
	}
	reqID := uuid.NewString()
	ch := make(chan envelope, replyBuffer)

	c.mu.Lock()
	conn := c.conn
	if conn == nil || !c.connected {
		c.mu.Unlock()
		return nil, broker.ErrUnavailable
	}
	c.pending[reqID] = ch
	err = conn.WriteJSON(envelope{Name: name, Msg: payload, RequestID: reqID})
	c.mu.Unlock()
	if err != nil {
		c.dropPending(reqID)
		c.markDisconnected(conn)
		return nil, fmt.Errorf("send %s: %w", name, err)
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return nil, broker.ErrUnavailable
		}
		return env.Msg, nil
	case <-ctx.Done():
		c.dropPending(reqID)
		return nil, ctx.Err()
	}
}

func (c *Client) dropPending(reqID string) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

func (c *Client) Balance(ctx context.Context) (float64, error) {
	raw, err := c.call(ctx, "get-balances", struct{}{})
	if err != nil {
		return 0, err
	}
	var reply balancesReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return 0, fmt.Errorf("parse balances: %w", err)
	}
	return reply.Amount, nil
}

func (c *Client) Candles(ctx context.Context, name string, timeframe time.Duration, count int, to time.Time) ([]broker.Candle, error) {
	raw, err := c.call(ctx, "get-candles", candlesMsg{
		Active: name,
		Size:   int(timeframe / time.Second),
		Count:  count,
		To:     to.Unix(),
	})
	if err != nil {
		return nil, err
	}
	var reply candlesReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("parse candles for %s: %w", name, err)
	}
	if len(reply.Candles) == 0 {
		return nil, broker.ErrUnavailable
	}
	out := make([]broker.Candle, 0, len(reply.Candles))
	for _, k := range reply.Candles {
		out = append(out, broker.Candle{
			Open:  k.Open,
			Close: k.Clos,
			High:  k.High,
			Low:   k.Low,
			From:  time.Unix(k.From, 0),
			To:    time.Unix(k.To, 0),
		})
	}
	return out, nil
}

func (c *Client) Buy(ctx context.Context, amount float64, name string, dir broker.Direction, expiryMinutes int) (string, error) {
	raw, err := c.call(ctx, "binary-options.open-option", openOptionMsg{
		Active:    name,
		Direction: string(dir),
		Amount:    amount,
		Expiry:    expiryMinutes,
	})
	if err != nil {
		return "", err
	}
	var reply openOptionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("parse open-option: %w", err)
	}
	if reply.ID == "" {
		if strings.Contains(strings.ToLower(reply.Message), "suspended") ||
			strings.Contains(strings.ToLower(reply.Message), "not available") {
			return "", fmt.Errorf("buy %s: %w", name, broker.ErrInstrumentClosed)
		}
		return "", fmt.Errorf("buy %s rejected: %s", name, reply.Message)
	}
	return reply.ID, nil
}

func outcomeFrom(r orderReply) (broker.Outcome, error) {
	result := broker.Result(r.Result)
	if result == broker.ResultUnknown {
		return broker.Outcome{}, broker.ErrUnavailable
	}
	return broker.Outcome{
		Result:        result,
		WinAmount:     r.WinAmount,
		ProfitPercent: r.ProfitPercent,
	}, nil
}

func (c *Client) OrderResult(ctx context.Context, orderID string) (broker.Outcome, error) {
	raw, err := c.call(ctx, "portfolio.get-order", orderQueryMsg{ID: orderID})
	if err != nil {
		return broker.Outcome{}, err
	}
	var reply orderReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return broker.Outcome{}, fmt.Errorf("parse order %s: %w", orderID, err)
	}
	return outcomeFrom(reply)
}

func (c *Client) RecentOrders(ctx context.Context) ([]broker.OrderRecord, error) {
	raw, err := c.call(ctx, "portfolio.order-history", struct{}{})
	if err != nil {
		return nil, err
	}
	var reply orderHistoryReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("parse order history: %w", err)
	}
	out := make([]broker.OrderRecord, 0, len(reply.Orders))
	for _, o := range reply.Orders {
		out = append(out, broker.OrderRecord{
			ID:        o.ID,
			Result:    broker.Result(o.Result),
			WinAmount: o.WinAmount,
		})
	}
	return out, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (broker.Outcome, error) {
	raw, err := c.call(ctx, "get-order-status", orderQueryMsg{ID: orderID})
	if err != nil {
		return broker.Outcome{}, err
	}
	var reply orderReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return broker.Outcome{}, fmt.Errorf("parse order status %s: %w", orderID, err)
	}
	return outcomeFrom(reply)
}

func (c *Client) Listings(ctx context.Context) ([]broker.Listing, error) {
	raw, err := c.call(ctx, "get-initialization-data", struct{}{})
	if err != nil {
		return nil, err
	}
	var reply initializationReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("parse initialization data: %w", err)
	}
	out := make([]broker.Listing, 0, len(reply.Actives))
	for _, a := range reply.Actives {
		out = append(out, broker.Listing{
			Name:       a.Name,
			OptionType: a.Type,
			Open:       a.Enabled && !a.Suspended,
		})
	}
	return out, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}
