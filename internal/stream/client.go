// Package stream owns the one logical full-duplex channel a monitoring
// session holds to the server. It manages the connection lifecycle
// (heartbeat, single-shot reconnect scheduling, teardown) and fans inbound
// JSON envelopes out to listeners registered per event name.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"botwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// dialTimeout bounds the websocket handshake.
	dialTimeout = 15 * time.Second

	// DefaultHeartbeatInterval is how often a PING action is sent while the
	// channel is open.
	DefaultHeartbeatInterval = 20 * time.Second

	// DefaultReconnectDelay is the fixed delay before the single scheduled
	// reconnect attempt after an unexpected close.
	DefaultReconnectDelay = 5 * time.Second
)

// Listener receives the decoded payload of one inbound event.
type Listener func(data json.RawMessage)

// Config carries the connection parameters for a session channel.
type Config struct {
	// URL is the websocket base endpoint, e.g. "wss://host".
	URL string

	// UserID addresses the per-user channel; it is encoded into the dial
	// path.
	UserID string

	// Token, when set, is presented as a bearer credential on dial. Session
	// authentication itself is handled server-side.
	Token string

	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
}

// Client is the connection manager: at most one open websocket per session,
// automatic single-shot reconnect on unexpected close, and inbound fan-out
// by event discriminator. Connection loss is invisible to callers beyond
// IsConnected.
type Client struct {
	cfg       Config
	url       string
	sessionID string
	logger    *slog.Logger

	// dial is swappable so tests can count or fail connection attempts.
	dial func(ctx context.Context) (*websocket.Conn, error)

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	closed         bool
	reconnectTimer *time.Timer // single handle; nil when no attempt pending

	listenerMu sync.RWMutex
	listeners  map[string][]Listener
	onConnect  []func()
}

// New creates a client for the per-user channel addressed by cfg. The
// channel is not dialed until Connect.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	sessionID := uuid.New().String()
	c := &Client{
		cfg:       cfg,
		url:       fmt.Sprintf("%s/ws/%s", strings.TrimRight(cfg.URL, "/"), cfg.UserID),
		sessionID: sessionID,
		logger: logger.With(
			slog.String("component", "stream"),
			slog.String("session_id", sessionID),
		),
		listeners: make(map[string][]Listener),
	}
	c.dial = c.defaultDial
	return c
}

// Connect establishes the channel. On success it clears any pending
// reconnect timer, starts the heartbeat, and begins dispatching inbound
// messages.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("stream: connect: %w", domain.ErrClosed)
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	dial := c.dial
	c.mu.Unlock()

	conn, err := dial(ctx)
	if err != nil {
		return fmt.Errorf("stream: connect: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("stream: connect: %w", domain.ErrClosed)
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)

	c.logger.Info("channel open", slog.String("url", c.url))

	c.listenerMu.RLock()
	hooks := c.onConnect
	c.listenerMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// OnConnect registers a hook that runs after every successful Connect,
// including scheduled reconnects. The server forgets all subscriptions on
// close, so hooks typically replay them.
func (c *Client) OnConnect(fn func()) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Send delivers a message if and only if the channel is open; otherwise the
// message is silently dropped. Callers must not depend on delivery
// confirmation.
func (c *Client) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("drop unmarshalable outbound message", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		c.logger.Debug("drop message while disconnected", slog.Int("payload_len", len(data)))
		return
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// Write errors do not self-heal; force-close and let the reconnect
		// path take over.
		c.logger.Warn("write failed, closing channel", slog.String("error", err.Error()))
		c.failLocked(c.conn)
	}
}

// On registers a listener for the given event name. Listeners run on the
// read loop goroutine in arrival order.
func (c *Client) On(event string, fn Listener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners[event] = append(c.listeners[event], fn)
}

// IsConnected reports whether the channel is currently open. It is the only
// connection status surfaced to callers.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears the session down: the pending reconnect attempt (if any) is
// cancelled, the channel is closed, and no ghost reconnect is spawned.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

func (c *Client) defaultDial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	var header http.Header
	if c.cfg.Token != "" {
		header = http.Header{"Authorization": {"Bearer " + c.cfg.Token}}
	}
	conn, _, err := dialer.DialContext(ctx, c.url, header)
	return conn, err
}

// readLoop reads until the connection fails, dispatching each message. One
// loop exists per established connection; a loop whose connection has been
// superseded exits without side effects.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if conn == c.conn {
				c.logger.Warn("channel closed", slog.String("error", err.Error()))
				c.failLocked(conn)
			}
			c.mu.Unlock()
			return
		}
		c.dispatch(raw)
	}
}

// heartbeatLoop sends a PING action at the configured interval for as long
// as conn remains the active connection.
func (c *Client) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		active := conn == c.conn && c.connected
		c.mu.Unlock()
		if !active {
			return
		}
		c.Send(domain.NewPingCommand())
	}
}

// failLocked marks the channel disconnected, closes conn, and schedules the
// single reconnect attempt unless the session has been torn down. Caller
// must hold c.mu.
func (c *Client) failLocked(conn *websocket.Conn) {
	c.connected = false
	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()

	if c.closed {
		return
	}
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the reconnect timer if none is pending.
// Check-then-set on the single timer handle guarantees that N consecutive
// closes within the delay window still yield exactly one attempt. Caller
// must hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	c.logger.Info("scheduling reconnect", slog.Duration("delay", c.cfg.ReconnectDelay))
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, c.attemptReconnect)
}

// attemptReconnect runs on timer expiry. A failed attempt re-arms the timer;
// a session closed in the meantime stops the chain.
func (c *Client) attemptReconnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	err := c.Connect(ctx)
	cancel()
	if err == nil {
		return
	}

	c.logger.Warn("reconnect failed", slog.String("error", err.Error()))
	c.mu.Lock()
	if !c.closed {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()
}

// dispatch parses one raw inbound message and fans it out to the listeners
// registered for its event. Malformed messages are logged and dropped, never
// propagated.
func (c *Client) dispatch(raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		c.logger.Warn("drop malformed message", slog.Int("payload_len", len(raw)))
		return
	}

	c.listenerMu.RLock()
	listeners := c.listeners[env.Event]
	c.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(env.Data)
	}
}
