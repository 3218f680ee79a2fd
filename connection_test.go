package chatgenius

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// fakeBroker is an in-process websocket broker: it acks the handshake,
// records every client frame, and can push event frames or drop connections.
type fakeBroker struct {
	t   *testing.T
	srv *httptest.Server

	handshakeDelay time.Duration
	refuse         bool

	mu     sync.Mutex
	frames []clientFrame
	conns  []*websocket.Conn
	dials  int
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	b := &fakeBroker{t: t}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.dials++
		refuse := b.refuse
		b.mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if refuse {
			conn.Close(websocket.StatusProtocolError, "handshake rejected")
			return
		}

		if b.handshakeDelay > 0 {
			time.Sleep(b.handshakeDelay)
		}
		ack, _ := json.Marshal(serverFrame{
			Topic:   metaConnectedTopic,
			Payload: json.RawMessage(`{"userId":"u1","username":"alice"}`),
		})
		if err := conn.Write(r.Context(), websocket.MessageText, ack); err != nil {
			return
		}

		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			var frame clientFrame
			if json.Unmarshal(data, &frame) == nil {
				b.mu.Lock()
				b.frames = append(b.frames, frame)
				b.mu.Unlock()
			}
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBroker) url() string { return b.srv.URL }

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) framesOf(action string) []clientFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []clientFrame
	for _, f := range b.frames {
		if f.Action == action {
			out = append(out, f)
		}
	}
	return out
}

// push writes an event frame on the most recent connection.
func (b *fakeBroker) push(topic string, payload any) {
	b.t.Helper()
	b.mu.Lock()
	require.NotEmpty(b.t, b.conns, "no broker connection to push on")
	conn := b.conns[len(b.conns)-1]
	b.mu.Unlock()

	raw, err := json.Marshal(payload)
	require.NoError(b.t, err)
	data, err := json.Marshal(serverFrame{Topic: topic, Payload: raw})
	require.NoError(b.t, err)
	require.NoError(b.t, conn.Write(context.Background(), websocket.MessageText, data))
}

// drop closes every open connection server-side, simulating a network cut.
func (b *fakeBroker) drop() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "dropped")
	}
}

func testConnOptions() connOptions {
	opts := defaultConnOptions()
	opts.baseDelay = 10 * time.Millisecond
	opts.maxDelay = 50 * time.Millisecond
	return opts
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 5*time.Millisecond, msg)
}

// ----------------------------------------------------------------------

func TestConnectHandshake(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())
	t.Cleanup(c.Disconnect)

	require.NoError(t, c.Connect(context.Background(), "t1"))

	assert.True(t, c.IsConnected())
	assert.Equal(t, StateConnected, c.State())
	userID, username := c.Identity()
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "alice", username)
}

func TestConnectRequiresToken(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())

	err := c.Connect(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, c.IsConnected())
}

func TestConnectIdempotentSameToken(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())
	t.Cleanup(c.Disconnect)

	require.NoError(t, c.Connect(context.Background(), "t1"))
	require.NoError(t, c.Connect(context.Background(), "t1"))

	assert.Equal(t, 1, b.dialCount())
}

func TestConcurrentConnectSharesInFlightOutcome(t *testing.T) {
	b := newFakeBroker(t)
	b.handshakeDelay = 50 * time.Millisecond
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())
	t.Cleanup(c.Disconnect)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Connect(context.Background(), "t1")
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 1, b.dialCount())
}

func TestFreshTokenSupersedesOldSession(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())
	t.Cleanup(c.Disconnect)

	require.NoError(t, c.Connect(context.Background(), "t1"))
	require.NoError(t, c.Connect(context.Background(), "t2"))

	assert.True(t, c.IsConnected())
	assert.Equal(t, 2, b.dialCount())
}

func TestSendFrameWhileDisconnected(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())

	err := c.sendFrame(context.Background(), clientFrame{Action: actionPublish, Topic: "/app/presence"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnectAfterDrop(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())
	t.Cleanup(c.Disconnect)

	var disconnects int
	var mu sync.Mutex
	c.OnDisconnect(func(err error) {
		mu.Lock()
		disconnects++
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background(), "t1"))
	b.drop()

	eventually(t, func() bool { return b.dialCount() == 2 && c.IsConnected() }, "expected reconnect")
	mu.Lock()
	assert.GreaterOrEqual(t, disconnects, 1)
	mu.Unlock()
}

func TestReconnectGivesUpAfterBudget(t *testing.T) {
	b := newFakeBroker(t)
	opts := testConnOptions()
	opts.maxAttempts = 2
	c := newConnection(b.url(), opts, zerolog.Nop())
	t.Cleanup(c.Disconnect)

	terminal := make(chan error, 8)
	c.OnDisconnect(func(err error) {
		if errors.Is(err, ErrRetriesExhausted) {
			terminal <- err
		}
	})

	require.NoError(t, c.Connect(context.Background(), "t1"))

	b.mu.Lock()
	b.refuse = true
	b.mu.Unlock()
	b.drop()

	select {
	case <-terminal:
	case <-time.After(3 * time.Second):
		t.Fatal("expected terminal failure after retry budget")
	}
	assert.False(t, c.IsConnected())

	// An explicit new Connect call retries from scratch.
	b.mu.Lock()
	b.refuse = false
	b.mu.Unlock()
	require.NoError(t, c.Connect(context.Background(), "t1"))
	assert.True(t, c.IsConnected())
}

func TestDeliberateDisconnectDoesNotReconnect(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())

	require.NoError(t, c.Connect(context.Background(), "t1"))
	c.Disconnect()

	assert.False(t, c.IsConnected())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, b.dialCount())

	// Safe to call again while already down.
	c.Disconnect()
}

func TestMalformedFrameDoesNotKillDispatch(t *testing.T) {
	b := newFakeBroker(t)
	c := newConnection(b.url(), testConnOptions(), zerolog.Nop())
	t.Cleanup(c.Disconnect)

	var mu sync.Mutex
	var topics []string
	c.setFrameHandler(func(topic string, payload json.RawMessage) {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background(), "t1"))

	// Raw garbage straight onto the socket, then a valid frame.
	b.mu.Lock()
	conn := b.conns[len(b.conns)-1]
	b.mu.Unlock()
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte("{not json")))
	b.push("/topic/channels/general", map[string]string{"type": "MESSAGE_NEW"})

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(topics) == 1 && topics[0] == "/topic/channels/general"
	}, "valid frame should survive a malformed predecessor")
}
