package chatgenius

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultPresenceInterval = 30 * time.Second

type presencePayload struct {
	Status string `json:"status"`
}

// presenceAnnouncer is a best-effort side channel: "online" goes out on every
// successful connect and then periodically; "offline" goes out immediately
// before a deliberate disconnect, with no guarantee it is delivered if the
// network is already gone.
type presenceAnnouncer struct {
	client   *Client
	logger   zerolog.Logger
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func newPresenceAnnouncer(client *Client, interval time.Duration, logger zerolog.Logger) *presenceAnnouncer {
	p := &presenceAnnouncer{
		client:   client,
		logger:   logger.With().Str("component", "presence").Logger(),
		interval: interval,
	}
	client.conn.OnConnect(p.onConnect)
	client.conn.OnDisconnect(func(error) { p.stopPulse() })
	return p
}

func (p *presenceAnnouncer) onConnect() {
	p.announce("online")

	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	go p.pulse(stop)
}

func (p *presenceAnnouncer) pulse(stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.announce("online")
		}
	}
}

func (p *presenceAnnouncer) stopPulse() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()
}

// announceOffline is called before a deliberate disconnect.
func (p *presenceAnnouncer) announceOffline() {
	p.stopPulse()
	p.announce("offline")
}

func (p *presenceAnnouncer) announce(status string) {
	err := p.client.publish(context.Background(), presenceDestination, presencePayload{Status: status})
	if err != nil {
		p.logger.Debug().Err(err).Str("status", status).Msg("presence pulse not delivered")
	}
}
