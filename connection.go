package chatgenius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

var (
	// ErrNotConnected is returned by send operations while the socket is down.
	ErrNotConnected = errors.New("chatgenius: not connected")
	// ErrNoToken means the auth provider has no credential yet.
	ErrNoToken = errors.New("chatgenius: no auth token available")
	// ErrRetriesExhausted is surfaced to disconnect listeners once the
	// reconnect budget is spent. A new explicit Connect call is required.
	ErrRetriesExhausted = errors.New("chatgenius: reconnect attempts exhausted")
)

// ConnState is the connection lifecycle state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

const (
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMaxAttempts = 5
)

type connOptions struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	httpClient  *http.Client
}

func defaultConnOptions() connOptions {
	return connOptions{
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		maxAttempts: defaultMaxAttempts,
		httpClient:  http.DefaultClient,
	}
}

// frameHandler receives every inbound event frame after the handshake.
type frameHandler func(topic string, payload json.RawMessage)

// Connection owns the single broker socket. It attaches the auth token at
// connect time, performs the handshake, and drives bounded exponential
// backoff reconnection on unexpected drops. No other component touches the
// socket directly.
type Connection struct {
	baseURL string
	opts    connOptions
	logger  zerolog.Logger

	mu          sync.Mutex
	state       ConnState
	token       string
	ws          *websocket.Conn
	cancel      context.CancelFunc
	intentional bool
	attempt     int
	retryTimer  *time.Timer
	identity    connectedPayload

	// Shared in-flight connect outcome: concurrent Connect calls wait on
	// pending instead of dialing a second socket.
	pending     chan struct{}
	lastConnErr error

	writeMu sync.Mutex

	lmu          sync.Mutex
	onConnect    []func()
	onDisconnect []func(error)
	onFrame      frameHandler
}

func newConnection(baseURL string, opts connOptions, logger zerolog.Logger) *Connection {
	return &Connection{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		state:   StateDisconnected,
		logger:  logger.With().Str("component", "connection").Logger(),
	}
}

// OnConnect registers a listener invoked after every successful connect,
// before any event frame is dispatched. The broker does not replay events
// missed while disconnected, so listeners that cache deltas should refetch
// their REST snapshot here before trusting the stream again.
func (c *Connection) OnConnect(fn func()) {
	c.lmu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.lmu.Unlock()
}

// OnDisconnect registers a listener invoked when the connection goes down.
// The error is nil for a deliberate Disconnect, the transport error for an
// unexpected drop, and ErrRetriesExhausted when reconnection gives up.
func (c *Connection) OnDisconnect(fn func(error)) {
	c.lmu.Lock()
	c.onDisconnect = append(c.onDisconnect, fn)
	c.lmu.Unlock()
}

func (c *Connection) setFrameHandler(fn frameHandler) {
	c.lmu.Lock()
	c.onFrame = fn
	c.lmu.Unlock()
}

// State returns the current connection state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the socket is open and the handshake completed.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Identity returns the user identity the broker acknowledged during the
// handshake. Zero value while disconnected.
func (c *Connection) Identity() (userID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.UserID, c.identity.Username
}

// Connect establishes the socket with the given token. It is idempotent: if
// already connected with the same token it is a no-op, and if a connect is
// already in flight the call waits for that outcome instead of dialing a
// second socket. A fresh token supersedes the old one.
func (c *Connection) Connect(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}

	c.mu.Lock()
	if c.state == StateConnected && c.token == token {
		c.mu.Unlock()
		return nil
	}
	if p := c.pending; p != nil {
		c.mu.Unlock()
		select {
		case <-p:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		err := c.lastConnErr
		c.mu.Unlock()
		return err
	}
	if c.state == StateConnected {
		// Token changed: tear down the old session first.
		c.mu.Unlock()
		c.Disconnect()
		c.mu.Lock()
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	p := make(chan struct{})
	c.pending = p
	c.state = StateConnecting
	c.token = token
	c.intentional = false
	c.mu.Unlock()

	err := c.dial(ctx, token)

	c.mu.Lock()
	c.lastConnErr = err
	c.pending = nil
	if err != nil {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	close(p)

	if err != nil {
		// Handshake and transport failures share the reconnect path.
		c.logger.Error().Err(err).Msg("connect failed")
		c.scheduleReconnect()
		return err
	}

	c.logger.Debug().Msg("connected")
	c.notifyConnect()
	c.startReadLoop()
	return nil
}

func (c *Connection) dial(ctx context.Context, token string) error {
	wsURL := strings.Replace(c.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/ws?token=" + token

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: c.opts.httpClient,
	})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	// The broker acks a successful handshake with a /meta/connected frame
	// before any event flows. Connected state is not reported until then.
	_, data, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return fmt.Errorf("read handshake frame: %w", err)
	}
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Topic != metaConnectedTopic {
		conn.Close(websocket.StatusProtocolError, "bad handshake")
		return fmt.Errorf("expected %s handshake, got %q", metaConnectedTopic, frame.Topic)
	}
	var id connectedPayload
	if err := json.Unmarshal(frame.Payload, &id); err != nil {
		conn.Close(websocket.StatusProtocolError, "bad handshake payload")
		return fmt.Errorf("decode handshake payload: %w", err)
	}

	c.mu.Lock()
	c.ws = conn
	c.state = StateConnected
	c.attempt = 0
	c.identity = id
	c.mu.Unlock()
	return nil
}

func (c *Connection) startReadLoop() {
	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		go c.readLoop(loopCtx, ws)
	}
}

func (c *Connection) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			c.mu.Lock()
			intentional := c.intentional
			stale := c.ws != ws
			if !stale {
				c.ws = nil
				c.state = StateDisconnected
			}
			c.mu.Unlock()
			// A stale socket was already superseded by a newer connect;
			// its demise is not a disconnect.
			if intentional || stale {
				return
			}
			c.logger.Warn().Err(err).Msg("connection dropped")
			c.notifyDisconnect(err)
			c.scheduleReconnect()
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn().Err(err).Msg("discarding unparseable frame")
			continue
		}

		c.lmu.Lock()
		fn := c.onFrame
		c.lmu.Unlock()
		if fn != nil {
			fn(frame.Topic, frame.Payload)
		}
	}
}

func (c *Connection) scheduleReconnect() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	if c.attempt >= c.opts.maxAttempts {
		c.retryTimer = nil
		c.mu.Unlock()
		c.logger.Error().Int("attempts", c.opts.maxAttempts).Msg("reconnect attempts exhausted")
		c.notifyDisconnect(ErrRetriesExhausted)
		return
	}
	delay := c.opts.baseDelay << uint(c.attempt)
	if delay > c.opts.maxDelay {
		delay = c.opts.maxDelay
	}
	c.attempt++
	attempt := c.attempt
	token := c.token
	c.retryTimer = time.AfterFunc(delay, func() {
		c.logger.Debug().Int("attempt", attempt).Msg("reconnecting")
		// Connect reschedules on failure until the budget is spent.
		_ = c.Connect(context.Background(), token)
	})
	c.mu.Unlock()
	c.logger.Debug().Dur("delay", delay).Int("attempt", attempt).Msg("reconnect scheduled")
}

// Disconnect deliberately tears down the socket. Safe to call when not
// connected; pending reconnect timers are cancelled and the attempt counter
// reset.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.attempt = 0
	cancel := c.cancel
	c.cancel = nil
	ws := c.ws
	c.ws = nil
	wasConnected := c.state == StateConnected
	c.state = StateDisconnected
	c.identity = connectedPayload{}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		_ = ws.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if wasConnected {
		c.logger.Debug().Msg("disconnected")
		c.notifyDisconnect(nil)
	}
}

// sendFrame marshals and writes one client frame. Fails fast with
// ErrNotConnected rather than queuing.
func (c *Connection) sendFrame(ctx context.Context, frame clientFrame) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.state == StateConnected
	c.mu.Unlock()
	if ws == nil || !connected {
		return ErrNotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.Write(ctx, websocket.MessageText, data)
}

func (c *Connection) notifyConnect() {
	c.lmu.Lock()
	listeners := append([]func(){}, c.onConnect...)
	c.lmu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (c *Connection) notifyDisconnect(err error) {
	c.lmu.Lock()
	listeners := append([]func(error){}, c.onDisconnect...)
	c.lmu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}
