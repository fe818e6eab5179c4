package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"token-sniper/internal/domain"
)

// ClientConfig configures WebSocket client behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultClientConfig returns default WebSocket configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// Client is a websocket market-data client implementing CandidateSource
// and TickSource against a JSON-RPC-style streaming endpoint. It
// reconnects with exponential backoff and resubscribes everything after
// a reconnect.
type Client struct {
	endpoint string
	config   ClientConfig
	logger   zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	candidates chan candidatePayload

	// tickSubs maps subscription ID to the delivery channel; mintSubs
	// maps mint to subscription ID for unsubscription and reconnect.
	tickSubs   map[int64]chan tickPayload
	mintSubs   map[string]int64
	tickSubsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewClient connects to the endpoint and subscribes to the candidate
// stream.
func NewClient(ctx context.Context, endpoint string, config *ClientConfig, logger zerolog.Logger) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger.With().Str("component", "feed").Logger(),
		candidates:  make(chan candidatePayload, 1024),
		tickSubs:    make(map[int64]chan tickPayload),
		mintSubs:    make(map[string]int64),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	if _, err := c.subscribe(ctx, "candidateSubscribe", nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("candidate subscription: %w", err)
	}

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Candidates implements CandidateSource. The returned channel is closed
// on Close.
func (c *Client) Candidates() <-chan domain.CandidateSnapshot {
	out := make(chan domain.CandidateSnapshot, 1024)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		for {
			select {
			case <-c.done:
				return
			case p, ok := <-c.candidates:
				if !ok {
					return
				}
				select {
				case out <- p.toDomain():
				case <-c.done:
					return
				}
			}
		}
	}()
	return out
}

// Subscribe implements TickSource for one mint.
func (c *Client) Subscribe(ctx context.Context, mint string) (<-chan domain.PriceTick, error) {
	subID, err := c.subscribe(ctx, "tickSubscribe", []interface{}{mint})
	if err != nil {
		return nil, err
	}

	// Large buffer plus blocking send: bursts are absorbed, nothing is
	// dropped.
	ch := make(chan tickPayload, 10000)
	c.tickSubsMu.Lock()
	c.tickSubs[subID] = ch
	c.mintSubs[mint] = subID
	c.tickSubsMu.Unlock()

	out := make(chan domain.PriceTick, 10000)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		for {
			select {
			case <-c.done:
				return
			case p, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- p.toDomain(mint):
				case <-c.done:
					return
				}
			}
		}
	}()
	return out, nil
}

// Unsubscribe implements TickSource.
func (c *Client) Unsubscribe(mint string) {
	c.tickSubsMu.Lock()
	subID, ok := c.mintSubs[mint]
	if ok {
		delete(c.mintSubs, mint)
		if ch, present := c.tickSubs[subID]; present {
			close(ch)
			delete(c.tickSubs, subID)
		}
	}
	c.tickSubsMu.Unlock()

	if !ok || c.closed.Load() {
		return
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "tickUnsubscribe",
		Params:  []interface{}{subID},
	}
	c.writeJSON(req)
}

// Close closes the connection and every subscription channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.tickSubsMu.Lock()
	for id, ch := range c.tickSubs {
		close(ch)
		delete(c.tickSubs, id)
	}
	c.mintSubs = make(map[string]int64)
	c.tickSubsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	// The reader is the only sender on candidates; close it after the
	// reader has exited.
	c.wg.Wait()
	close(c.candidates)
	return nil
}

// subscribe sends one subscription request and waits for its ID.
func (c *Client) subscribe(ctx context.Context, method string, params []interface{}) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	if err := c.writeJSON(req); err != nil {
		c.dropPending(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		c.dropPending(reqID)
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		c.dropPending(reqID)
		return 0, ctx.Err()
	}
}

func (c *Client) dropPending(reqID uint64) {
	c.pendingSubsMu.Lock()
	delete(c.pendingSubs, reqID)
	c.pendingSubsMu.Unlock()
}

func (c *Client) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// readLoop reads messages and dispatches to subscribers, reconnecting
// with exponential backoff on connection errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect re-establishes the connection and resubscribes everything.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("reconnect failed, will retry on next read error")
		return
	}
	c.logger.Info().Msg("reconnected")

	c.resubscribeAll()
}

// resubscribeAll restores the candidate stream and every tick
// subscription on the fresh connection.
func (c *Client) resubscribeAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := c.subscribe(ctx, "candidateSubscribe", nil); err != nil {
		c.logger.Warn().Err(err).Msg("candidate resubscription failed")
	}
	cancel()

	c.tickSubsMu.RLock()
	mints := make(map[string]int64, len(c.mintSubs))
	for mint, id := range c.mintSubs {
		mints[mint] = id
	}
	c.tickSubsMu.RUnlock()

	for mint, oldSubID := range mints {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := c.subscribe(ctx, "tickSubscribe", []interface{}{mint})
		cancel()

		if err != nil {
			c.logger.Warn().Err(err).Str("mint", mint).Msg("tick resubscription failed")
			continue
		}

		c.tickSubsMu.Lock()
		if ch, ok := c.tickSubs[oldSubID]; ok {
			delete(c.tickSubs, oldSubID)
			c.tickSubs[newSubID] = ch
			c.mintSubs[mint] = newSubID
		}
		c.tickSubsMu.Unlock()
	}
}

// handleMessage routes one incoming frame.
func (c *Client) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Params != nil {
		switch notif.Method {
		case "candidateNotification":
			c.handleCandidate(&notif)
			return
		case "tickNotification":
			c.handleTick(&notif)
			return
		}
	}

	var errResp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      uint64 `json:"id"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.logger.Warn().Int("code", errResp.Error.Code).Str("msg", errResp.Error.Message).
			Msg("feed error response")
	}
}

func (c *Client) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

func (c *Client) handleCandidate(notif *wsNotification) {
	var p candidatePayload
	if err := json.Unmarshal(notif.Params.Result, &p); err != nil {
		c.logger.Warn().Err(err).Msg("malformed candidate notification")
		return
	}

	select {
	case c.candidates <- p:
	case <-c.done:
	}
}

func (c *Client) handleTick(notif *wsNotification) {
	var p tickPayload
	if err := json.Unmarshal(notif.Params.Result, &p); err != nil {
		c.logger.Warn().Err(err).Msg("malformed tick notification")
		return
	}

	c.tickSubsMu.RLock()
	ch, ok := c.tickSubs[notif.Params.Subscription]
	c.tickSubsMu.RUnlock()

	if ok {
		// Block until we can send. Ticks drive exits; never drop them.
		select {
		case ch <- p:
		case <-c.done:
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A failed ping means a dead connection; the reader
				// drives the reconnect.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}
