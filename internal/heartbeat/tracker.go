// Package heartbeat tracks connection liveness in both directions.
package heartbeat

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DeadAfter is how many heartbeat intervals of silence mean the peer is gone.
const DeadAfter = 2

// Tracker records when frames were last sent and received. A zero interval
// disables heartbeats.
type Tracker struct {
	clock    clock.Clock
	interval time.Duration

	mu       sync.Mutex
	lastRecv time.Time
	sends    uint64
}

// New creates a tracker for the negotiated heartbeat interval
func New(clk clock.Clock, interval time.Duration) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{
		clock:    clk,
		interval: interval,
		lastRecv: clk.Now(),
	}
}

// Interval returns the negotiated interval
func (t *Tracker) Interval() time.Duration { return t.interval }

// Enabled reports whether heartbeats were negotiated
func (t *Tracker) Enabled() bool { return t.interval > 0 }

// ReadTimeout is the socket read deadline to apply between frames: twice the
// interval, or zero (no deadline) when heartbeats are off.
func (t *Tracker) ReadTimeout() time.Duration {
	if !t.Enabled() {
		return 0
	}
	return DeadAfter * t.interval
}

// Received records an incoming frame of any type
func (t *Tracker) Received() {
	t.mu.Lock()
	t.lastRecv = t.clock.Now()
	t.mu.Unlock()
}

// Sent records an outgoing write
func (t *Tracker) Sent() {
	t.mu.Lock()
	t.sends++
	t.mu.Unlock()
}

// LastReceived returns when the last frame arrived
func (t *Tracker) LastReceived() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRecv
}

// Silence returns how long the peer has been quiet
func (t *Tracker) Silence() time.Duration {
	return t.clock.Since(t.LastReceived())
}

// PeerDead reports whether nothing has arrived for DeadAfter intervals
func (t *Tracker) PeerDead() bool {
	return t.Enabled() && t.Silence() >= DeadAfter*t.interval
}

func (t *Tracker) sendCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sends
}

// Run ticks every half interval until done is closed. On a tick with no
// write since the previous tick it calls beat. When the peer has been silent
// for DeadAfter intervals it calls dead once and returns.
func (t *Tracker) Run(done <-chan struct{}, beat func(), dead func(silence time.Duration)) {
	if !t.Enabled() {
		return
	}

	ticker := t.clock.Ticker(t.interval / 2)
	defer ticker.Stop()

	seen := t.sendCount()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		if t.PeerDead() {
			dead(t.Silence())
			return
		}

		var idle bool
		if seen, idle = t.idleSince(seen); idle {
			beat()
		}
	}
}

// idleSince returns the current send count and whether it still equals seen
func (t *Tracker) idleSince(seen uint64) (uint64, bool) {
	n := t.sendCount()
	return n, n == seen
}
