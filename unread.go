package chatgenius

import "sync"

// UnreadTracker maintains per-channel unread counters suppressed for the
// currently viewed channel.
type UnreadTracker struct {
	mu      sync.Mutex
	counts  map[string]int
	current string
}

// NewUnreadTracker creates an empty tracker with no current channel.
func NewUnreadTracker() *UnreadTracker {
	return &UnreadTracker{counts: make(map[string]int)}
}

// SetCurrentChannel records id as the actively viewed channel and clears its
// counter. The clear happens before any later increment reads the current
// channel, so a just-opened channel never appears unread. Pass "" for no
// selection.
func (t *UnreadTracker) SetCurrentChannel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = id
	if id != "" {
		delete(t.counts, id)
	}
}

// CurrentChannel returns the actively viewed channel id, or "".
func (t *UnreadTracker) CurrentChannel() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Increment bumps a channel's unread counter. A no-op for the currently
// viewed channel.
func (t *UnreadTracker) Increment(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channelID == t.current {
		return
	}
	t.counts[channelID]++
}

// Count returns one channel's unread counter.
func (t *UnreadTracker) Count(channelID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[channelID]
}

// Counts returns a copy of all non-zero counters.
func (t *UnreadTracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Clear zeroes one channel's counter.
func (t *UnreadTracker) Clear(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, channelID)
}

// ClearAll zeroes every counter.
func (t *UnreadTracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[string]int)
}
