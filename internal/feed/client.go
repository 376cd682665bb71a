// Package feed owns the persistent combined-stream connection: dialing,
// decode and dispatch, and the reconnect state machine.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/observability"
)

// State is the connection lifecycle state.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Handler consumes decoded stream events. Calls are synchronous, on the read
// loop; implementations must not block beyond the duration of a storage call
// and must swallow their own errors.
type Handler interface {
	HandleKline(e *KlineEvent)
	HandleMarkPrice(e *MarkPriceEvent)
	HandleForceOrder(e *ForceOrderEvent)
	HandleTrade(e *AggTradeEvent)
	HandleDepth(d *domain.DepthUpdate)
}

// ClientConfig configures the feed client.
type ClientConfig struct {
	// BaseURL is the websocket base, e.g. wss://fstream.binance.com.
	BaseURL string
	// Symbols to subscribe; stream names use the lower-cased form.
	Symbols []string
	// ReconnectDelay is the fixed delay before a scheduled reconnect.
	ReconnectDelay time.Duration
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig(baseURL string, symbols []string) ClientConfig {
	return ClientConfig{
		BaseURL:          baseURL,
		Symbols:          symbols,
		ReconnectDelay:   3 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client is the combined-stream feed client. One read loop per live
// connection decodes envelopes and dispatches each payload to exactly one
// handler method.
type Client struct {
	cfg     ClientConfig
	url     string
	handler Handler
	health  *Health
	metrics *observability.Metrics
	logger  *logrus.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	state              atomic.Int32
	shuttingDown       atomic.Bool
	connecting         atomic.Bool
	reconnectScheduled atomic.Bool

	// now is injectable for tests.
	now func() time.Time
}

// NewClient creates a feed client. Connect must be called to start it.
func NewClient(cfg ClientConfig, handler Handler, health *Health, metrics *observability.Metrics, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if health == nil {
		health = NewHealth()
	}
	return &Client{
		cfg:     cfg,
		url:     combinedStreamURL(cfg.BaseURL, cfg.Symbols),
		handler: handler,
		health:  health,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// combinedStreamURL builds the multiplexed subscription URL.
func combinedStreamURL(base string, symbols []string) string {
	suffixes := []string{"@kline_1m", "@markPrice@1s", "@forceOrder", "@depth20@250ms", "@aggTrade"}

	var streams []string
	for _, sym := range symbols {
		s := strings.ToLower(sym)
		for _, suffix := range suffixes {
			streams = append(streams, s+suffix)
		}
	}
	return strings.TrimSuffix(base, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connect dials the combined stream and starts the read loop. It is
// idempotent: a no-op while a connection is already open, a dial is in
// flight, or shutdown has been requested. The connecting guard holds across
// the dial, where mu cannot; without it a reconnect timer racing Restart
// could open two sockets.
func (c *Client) Connect() error {
	if c.shuttingDown.Load() {
		return nil
	}
	if !c.connecting.CompareAndSwap(false, true) {
		return nil
	}
	defer c.connecting.Store(false)

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.state.Store(int32(StateConnecting))
	c.mu.Unlock()

	c.logger.Infof("feed: connecting %s", c.url)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		c.state.Store(int32(StateFailed))
		c.health.SetError(fmt.Sprintf("dial: %v", err))
		c.state.Store(int32(StateDisconnected))
		c.scheduleReconnect()
		return fmt.Errorf("dial feed: %w", err)
	}

	c.mu.Lock()
	if c.shuttingDown.Load() {
		c.mu.Unlock()
		conn.Close()
		c.state.Store(int32(StateDisconnected))
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.state.Store(int32(StateConnected))
	c.logger.Info("feed: connected")

	go c.readLoop(conn)
	return nil
}

// Restart closes the current connection and reconnects immediately,
// bypassing the delayed-reconnect path. Used by the staleness supervisor.
func (c *Client) Restart() {
	if c.shuttingDown.Load() {
		return
	}

	c.logger.Warn("feed: restart requested")
	c.health.RecordRestart()
	c.metrics.Restart()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.state.Store(int32(StateClosing))
		conn.Close()
	}
	c.state.Store(int32(StateDisconnected))

	if err := c.Connect(); err != nil {
		c.logger.Errorf("feed: restart connect failed: %v", err)
	}
}

// Shutdown permanently stops the client: no further reconnects are ever
// scheduled and the socket is closed without waiting for acknowledgment.
func (c *Client) Shutdown() {
	if c.shuttingDown.Swap(true) {
		return
	}

	c.logger.Info("feed: shutting down")

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}
	c.state.Store(int32(StateDisconnected))
}

// scheduleReconnect arms a single delayed reconnect. The guard flag ensures
// at most one reconnect is pending no matter how many close/failure signals
// arrive for the same connection instance.
func (c *Client) scheduleReconnect() {
	if c.shuttingDown.Load() {
		return
	}
	if !c.reconnectScheduled.CompareAndSwap(false, true) {
		return
	}

	c.health.RecordReconnect()
	c.metrics.Reconnect()
	c.logger.Warnf("feed: reconnect scheduled in %v", c.cfg.ReconnectDelay)

	time.AfterFunc(c.cfg.ReconnectDelay, func() {
		defer c.reconnectScheduled.Store(false)
		if c.shuttingDown.Load() {
			return
		}
		if err := c.Connect(); err != nil {
			c.logger.Errorf("feed: reconnect failed: %v", err)
		}
	})
}

// readLoop reads and dispatches messages until its connection dies. A read
// error on the still-current connection transitions the state machine and
// schedules one reconnect; a stale loop (connection already replaced by
// Restart or Shutdown) exits silently.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err == nil {
			c.handleMessage(message)
			continue
		}

		if c.shuttingDown.Load() {
			return
		}

		c.mu.Lock()
		current := c.conn == conn
		if current {
			c.conn = nil
		}
		c.mu.Unlock()

		if !current {
			return
		}

		c.logger.Warnf("feed: connection lost: %v", err)
		c.health.SetError(fmt.Sprintf("read: %v", err))
		c.state.Store(int32(StateFailed))
		c.state.Store(int32(StateDisconnected))
		c.scheduleReconnect()
		return
	}
}

// handleMessage decodes one envelope and dispatches it. Health is updated
// for every successfully decoded message regardless of handler outcome, and
// handler panics never reach the transport.
func (c *Client) handleMessage(raw []byte) {
	stream, data, err := decodeEnvelope(raw)
	if err != nil {
		c.metrics.DecodeDrop()
		c.logger.Debugf("feed: dropping undecodable message: %v", err)
		return
	}

	var probe eventProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		c.metrics.DecodeDrop()
		c.logger.Debugf("feed: dropping payload without discriminator on %s: %v", stream, err)
		return
	}

	eventType := probe.EventType
	if eventType == "" && strings.Contains(stream, "depth") {
		// Partial-depth payloads may omit "e" entirely.
		eventType = EventTypeDepth
	}

	switch eventType {
	case EventTypeKline:
		var e KlineEvent
		if err := json.Unmarshal(data, &e); err != nil {
			c.dropDecode(stream, err)
			return
		}
		c.recordAndDispatch(EventTypeKline, func() { c.handler.HandleKline(&e) })

	case EventTypeMarkPrice:
		var e MarkPriceEvent
		if err := json.Unmarshal(data, &e); err != nil {
			c.dropDecode(stream, err)
			return
		}
		c.recordAndDispatch(EventTypeMarkPrice, func() { c.handler.HandleMarkPrice(&e) })

	case EventTypeForceOrder:
		var e ForceOrderEvent
		if err := json.Unmarshal(data, &e); err != nil {
			c.dropDecode(stream, err)
			return
		}
		c.recordAndDispatch(EventTypeForceOrder, func() { c.handler.HandleForceOrder(&e) })

	case EventTypeAggTrade:
		var e AggTradeEvent
		if err := json.Unmarshal(data, &e); err != nil {
			c.dropDecode(stream, err)
			return
		}
		c.recordAndDispatch(EventTypeAggTrade, func() { c.handler.HandleTrade(&e) })

	case EventTypeDepth:
		d, err := decodeDepth(data, c.fallbackSymbol(), c.now().UnixMilli())
		if err != nil {
			c.dropDecode(stream, err)
			return
		}
		c.recordAndDispatch(EventTypeDepth, func() { c.handler.HandleDepth(d) })

	default:
		c.metrics.DecodeDrop()
		c.logger.Debugf("feed: unhandled stream=%s event=%s", stream, eventType)
	}
}

// recordAndDispatch bumps health first, then runs the handler with panic
// recovery. One bad message must never kill the connection.
func (c *Client) recordAndDispatch(eventType string, dispatch func()) {
	c.health.RecordMessage(eventType, c.now())
	c.metrics.Message(eventType)

	defer func() {
		if r := recover(); r != nil {
			c.metrics.HandlerPanic()
			c.logger.Errorf("feed: handler panic for %s: %v", eventType, r)
		}
	}()
	dispatch()
}

func (c *Client) dropDecode(stream string, err error) {
	c.metrics.DecodeDrop()
	c.logger.Debugf("feed: dropping malformed payload on %s: %v", stream, err)
}

// fallbackSymbol is used for depth payloads that omit the symbol field.
func (c *Client) fallbackSymbol() string {
	if len(c.cfg.Symbols) > 0 {
		return c.cfg.Symbols[0]
	}
	return ""
}
