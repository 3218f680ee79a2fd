// Package chatgenius is the Go client for the ChatGenius channel chat
// service. It implements the real-time synchronization core: one persistent
// broker socket multiplexed into many logical subscriptions, with bounded
// backoff reconnection, reference-counted subscription lifecycle, and pure
// reconciliation of out-of-order or duplicated events into consistent local
// view state.
//
// Example:
//
//	client := chatgenius.New("https://chat.example.com", chatgenius.StaticToken(token))
//	if err := client.Start(ctx); err != nil { ... }
//	defer client.Stop()
//
//	unsub, _ := client.SubscribeChannel("general", chatgenius.ChannelEventDemux{
//		OnMessageNew: func(m chatgenius.Message) {
//			messages = chatgenius.ApplyNewMessage(messages, m)
//		},
//	})
//	defer unsub()
package chatgenius

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client is the composition root tying the connection manager, subscription
// registry, REST backend and unread/presence tracking together. Construct one
// per process; there is no package-level singleton.
type Client struct {
	logger zerolog.Logger
	tokens TokenProvider

	conn     *Connection
	subs     *Registry
	rest     *REST
	unread   *UnreadTracker
	presence *presenceAnnouncer
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	httpClient       *http.Client
	logger           zerolog.Logger
	connOpts         connOptions
	presenceInterval time.Duration
}

// WithHTTPClient overrides the HTTP client used for REST calls and the
// websocket dial.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithLogger sets the structured logger. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithBackoff tunes the reconnect schedule: delays follow base*2^attempt
// capped at max, giving up after maxAttempts.
func WithBackoff(base, max time.Duration, maxAttempts int) Option {
	return func(c *clientConfig) {
		c.connOpts.baseDelay = base
		c.connOpts.maxDelay = max
		c.connOpts.maxAttempts = maxAttempts
	}
}

// WithPresenceInterval sets the period of the online presence pulse.
func WithPresenceInterval(d time.Duration) Option {
	return func(c *clientConfig) { c.presenceInterval = d }
}

// New creates a client for the service at baseURL. Call Start to connect.
func New(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	cfg := clientConfig{
		httpClient:       http.DefaultClient,
		logger:           zerolog.Nop(),
		connOpts:         defaultConnOptions(),
		presenceInterval: defaultPresenceInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.connOpts.httpClient = cfg.httpClient

	c := &Client{
		logger: cfg.logger,
		tokens: tokens,
		unread: NewUnreadTracker(),
	}
	c.conn = newConnection(baseURL, cfg.connOpts, cfg.logger)
	c.subs = newRegistry(c.conn, cfg.logger)
	c.rest = newREST(baseURL, cfg.httpClient, tokens, cfg.logger)
	c.presence = newPresenceAnnouncer(c, cfg.presenceInterval, cfg.logger)
	return c
}

// Start fetches a token from the provider and connects. Returns ErrNoToken
// while the provider has no credential (not signed in yet). Call Start again
// after the provider issues a fresh token, e.g. when a REST call comes back
// 401.
func (c *Client) Start(ctx context.Context) error {
	if !c.tokens.IsSignedIn() {
		return ErrNoToken
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNoToken
	}
	return c.conn.Connect(ctx, token)
}

// Stop announces offline presence best-effort and tears the connection down.
// Safe to call when not connected.
func (c *Client) Stop() {
	c.presence.announceOffline()
	c.conn.Disconnect()
}

// IsConnected reports whether the socket is up and the handshake completed.
func (c *Client) IsConnected() bool { return c.conn.IsConnected() }

// OnConnect registers a listener for successful (re)connects. Events missed
// while disconnected are not replayed; refetch REST snapshots here before
// trusting the delta stream again.
func (c *Client) OnConnect(fn func()) { c.conn.OnConnect(fn) }

// OnDisconnect registers a listener for connection loss. Surface it as a
// passive indicator: the REST path stays independently usable.
func (c *Client) OnDisconnect(fn func(error)) { c.conn.OnDisconnect(fn) }

// REST returns the HTTP backend client.
func (c *Client) REST() *REST { return c.rest }

// Unread returns the per-channel unread tracker.
func (c *Client) Unread() *UnreadTracker { return c.unread }

// Subscribe registers a raw payload consumer for a topic key. Most callers
// want one of the typed Subscribe* helpers instead.
func (c *Client) Subscribe(key string, onEvent EventHandler) (UnsubscribeFunc, error) {
	return c.subs.Subscribe(key, onEvent)
}

// SubscribeChannel subscribes to one channel's discriminated event stream and
// demultiplexes it into the typed callbacks.
func (c *Client) SubscribeChannel(channelID string, demux ChannelEventDemux) (UnsubscribeFunc, error) {
	return c.subs.Subscribe(ChannelTopic(channelID), demux.handler(c.logger))
}

// SubscribeTyping subscribes to a channel's typing pulses.
func (c *Client) SubscribeTyping(channelID string, onTyping func(username string)) (UnsubscribeFunc, error) {
	return c.subs.Subscribe(TypingTopic(channelID), typingHandler(c.logger, onTyping))
}

// SubscribeChannelEvents subscribes to the global channel lifecycle stream.
// Every consumer sees every event; filter client-side.
func (c *Client) SubscribeChannelEvents(onEvent func(LifecycleEvent)) (UnsubscribeFunc, error) {
	return c.subs.Subscribe(ChannelEventsTopic(), lifecycleHandler(c.logger, onEvent))
}

// SubscribeNotifications subscribes to a user's private notification queue.
func (c *Client) SubscribeNotifications(userID string, onNotification func(Notification)) (UnsubscribeFunc, error) {
	return c.subs.Subscribe(NotificationsTopic(userID), notificationHandler(c.logger, onNotification))
}
