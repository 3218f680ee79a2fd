package chatgenius

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrBadTopic is returned for subscribe calls with an empty topic key.
var ErrBadTopic = errors.New("chatgenius: empty topic key")

// EventHandler consumes raw event payloads for one topic.
type EventHandler func(payload json.RawMessage)

// UnsubscribeFunc removes one consumer. Calling it more than once is a no-op.
type UnsubscribeFunc func()

type subState int

const (
	subPending subState = iota // queued, waiting for a connection
	subActive                  // broker subscription established
)

type consumer struct {
	fn EventHandler
}

type subscriptionEntry struct {
	key       string
	state     subState
	consumers []*consumer
}

// Registry maps logical topic keys to broker subscriptions. Consumers are
// reference counted: the first subscriber for a key establishes the broker
// subscription, the last unsubscriber tears it down. Subscribing before the
// connection is up queues the key; every successful (re)connect re-establishes
// all referenced keys from scratch, in registration order, since broker-side
// subscription state does not survive a reconnect.
type Registry struct {
	conn   *Connection
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*subscriptionEntry
	order   []string
}

func newRegistry(conn *Connection, logger zerolog.Logger) *Registry {
	r := &Registry{
		conn:    conn,
		logger:  logger.With().Str("component", "registry").Logger(),
		entries: make(map[string]*subscriptionEntry),
	}
	conn.setFrameHandler(r.dispatch)
	conn.OnConnect(r.flush)
	conn.OnDisconnect(func(error) { r.suspend() })
	return r
}

// Subscribe registers onEvent as a consumer of key. If no broker subscription
// exists for the key one is created, immediately when connected or on the
// next connect otherwise. The returned disposer removes this consumer; if it
// was the last one the broker subscription is released.
func (r *Registry) Subscribe(key string, onEvent EventHandler) (UnsubscribeFunc, error) {
	if key == "" {
		return nil, ErrBadTopic
	}

	c := &consumer{fn: onEvent}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &subscriptionEntry{key: key, state: subPending}
		r.entries[key] = e
		r.order = append(r.order, key)
	}
	e.consumers = append(e.consumers, c)
	needsActivate := e.state == subPending && r.conn.IsConnected()
	if needsActivate {
		e.state = subActive
	}
	refs := len(e.consumers)
	r.mu.Unlock()

	r.logger.Debug().Str("topic", key).Int("refs", refs).Msg("consumer added")

	if needsActivate {
		r.activate(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(key, c) })
	}, nil
}

func (r *Registry) remove(key string, c *consumer) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	for i, cc := range e.consumers {
		if cc == c {
			e.consumers = append(e.consumers[:i], e.consumers[i+1:]...)
			break
		}
	}
	if len(e.consumers) > 0 {
		refs := len(e.consumers)
		r.mu.Unlock()
		r.logger.Debug().Str("topic", key).Int("refs", refs).Msg("consumer removed")
		return
	}
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	wasActive := e.state == subActive
	r.mu.Unlock()

	r.logger.Debug().Str("topic", key).Msg("last consumer removed, releasing subscription")
	if wasActive {
		err := r.conn.sendFrame(context.Background(), clientFrame{Action: actionUnsubscribe, Topic: key})
		if err != nil && !errors.Is(err, ErrNotConnected) {
			r.logger.Warn().Err(err).Str("topic", key).Msg("unsubscribe frame failed")
		}
	}
}

// flush establishes broker subscriptions for every referenced key. Runs on
// the connect notification, which the connection delivers before dispatching
// any event frame, so resubscription completes before normal delivery
// resumes.
func (r *Registry) flush() {
	r.mu.Lock()
	keys := make([]string, 0, len(r.order))
	for _, key := range r.order {
		if e, ok := r.entries[key]; ok && e.state == subPending {
			e.state = subActive
			keys = append(keys, key)
		}
	}
	r.mu.Unlock()

	for _, key := range keys {
		r.activate(key)
	}
}

// suspend discards broker handles on a connection drop. Consumers are kept;
// the entries go back to pending until the next connect.
func (r *Registry) suspend() {
	r.mu.Lock()
	for _, e := range r.entries {
		e.state = subPending
	}
	n := len(r.entries)
	r.mu.Unlock()
	if n > 0 {
		r.logger.Debug().Int("topics", n).Msg("subscriptions suspended")
	}
}

func (r *Registry) activate(key string) {
	err := r.conn.sendFrame(context.Background(), clientFrame{Action: actionSubscribe, Topic: key})
	if err != nil {
		// The connection dropped under us; the entry goes back to pending
		// and the next connect re-establishes it.
		r.logger.Warn().Err(err).Str("topic", key).Msg("subscribe frame failed")
		r.mu.Lock()
		if e, ok := r.entries[key]; ok {
			e.state = subPending
		}
		r.mu.Unlock()
		return
	}
	r.logger.Debug().Str("topic", key).Msg("subscription active")
}

// dispatch fans an inbound frame out to the topic's consumers. Iterates over
// a snapshot so a consumer unsubscribing from inside its handler is safe.
func (r *Registry) dispatch(topic string, payload json.RawMessage) {
	r.mu.Lock()
	e, ok := r.entries[topic]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug().Str("topic", topic).Msg("no consumers for frame")
		return
	}
	consumers := append([]*consumer{}, e.consumers...)
	r.mu.Unlock()

	for _, c := range consumers {
		c.fn(payload)
	}
}

// ActiveTopics returns the keys with an established broker subscription.
func (r *Registry) ActiveTopics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for _, key := range r.order {
		if e, ok := r.entries[key]; ok && e.state == subActive {
			keys = append(keys, key)
		}
	}
	return keys
}
