// Package notify carries the two best-effort side channels: wake-up hints
// for connected bridges and web push alerts for operators. Neither is
// required for correctness.
package notify

import (
	"sync"
	"time"
)

// Hint tells a subscribed bridge that work arrived for its outlet. A missed
// hint only delays the bridge's next poll; the poll is the source of truth.
type Hint struct {
	OutletID int64     `json:"outlet_id"`
	Station  string    `json:"station"`
	QueuedAt time.Time `json:"queued_at"`
}

// Hub fans hints out to per-outlet subscribers with bounded, non-blocking
// delivery.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]map[chan Hint]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[chan Hint]struct{})}
}

// Subscribe registers a hint channel for an outlet. The channel is buffered;
// a full buffer drops hints instead of blocking the publisher.
func (h *Hub) Subscribe(outletID int64) chan Hint {
	ch := make(chan Hint, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[outletID] == nil {
		h.subs[outletID] = make(map[chan Hint]struct{})
	}
	h.subs[outletID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a previously subscribed channel.
func (h *Hub) Unsubscribe(outletID int64, ch chan Hint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[outletID]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, outletID)
		}
	}
}

// JobQueued publishes a hint to every subscriber of the outlet. Never
// blocks; subscribers that cannot keep up miss the hint.
func (h *Hub) JobQueued(outletID int64, station string) {
	hint := Hint{OutletID: outletID, Station: station, QueuedAt: time.Now().UTC()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[outletID] {
		select {
		case ch <- hint:
		default:
		}
	}
}
