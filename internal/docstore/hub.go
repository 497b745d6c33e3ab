package docstore

import "sync"

// Subscription is a handle to an active collection listener
type Subscription struct {
	once  sync.Once
	close func()
}

// Close releases the listener; further mutations are not delivered
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

// NewSubscription wraps a release function in a Subscription handle. Close
// calls release exactly once.
func NewSubscription(release func()) *Subscription {
	return &Subscription{close: release}
}

// hub fans collection snapshots out to registered listeners. Delivery is
// synchronous with the mutating call, so a listener must not mutate the same
// collection from inside its callback.
type hub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func([]Entry)
}

func newHub() *hub {
	return &hub{listeners: make(map[string]map[int]func([]Entry))}
}

func (h *hub) subscribe(collection string, onChange func([]Entry)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners[collection] == nil {
		h.listeners[collection] = make(map[int]func([]Entry))
	}
	id := h.nextID
	h.nextID++
	h.listeners[collection][id] = onChange

	return &Subscription{close: func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[collection], id)
	}}
}

func (h *hub) broadcast(collection string, entries []Entry) {
	h.mu.Lock()
	callbacks := make([]func([]Entry), 0, len(h.listeners[collection]))
	for _, cb := range h.listeners[collection] {
		callbacks = append(callbacks, cb)
	}
	h.mu.Unlock()

	for _, cb := range callbacks {
		cb(entries)
	}
}
