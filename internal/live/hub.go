package live

import "sync"

// Hub fans group-changed signals out to live subscribers (SSE and websocket
// streams). Signals carry no payload; subscribers rebuild their own
// viewer-scoped snapshot on wake, so a coalesced or dropped signal is
// recovered by the next poll tick.
type Hub struct {
	mu     sync.Mutex
	groups map[int]map[chan struct{}]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{groups: make(map[int]map[chan struct{}]struct{})}
}

// Subscribe registers a listener for a group. The returned channel receives a
// signal whenever the group changes. The cancel func must be called when the
// stream ends.
func (h *Hub) Subscribe(groupID int) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	subs, ok := h.groups[groupID]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		h.groups[groupID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.groups[groupID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.groups, groupID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Notify wakes every subscriber of the group. Never blocks: a subscriber
// that already has a pending signal keeps just the one.
func (h *Hub) Notify(groupID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.groups[groupID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SubscriberCount reports the number of live listeners on a group.
func (h *Hub) SubscriberCount(groupID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[groupID])
}
