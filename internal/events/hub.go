// Package events is the in-process pub/sub used to surface controller
// activity to the admin API and the watch TUI.
package events

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Event types published by the controller.
const (
	SignalReceived      = "signal.received"
	SignalDropped       = "signal.dropped"
	FeedbackLoaded      = "feedback.loaded"
	FeedbackLoadFailed  = "feedback.load_failed"
	PlayStarted         = "feedback.play.started"
	PlayFinished        = "feedback.play.finished"
	ConfigReplaced      = "config.replaced"
	PluginFault         = "plugin.fault"
	LifecyclePrefix     = "lifecycle."
	HookPrefix          = "hook."
	defaultRingCapacity = 100
	subscriberBuffer    = 128
)

type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub is an in-memory pub/sub with a ring buffer for late subscribers.
type Hub struct {
	mu     sync.Mutex
	nextID int64
	ring   []Event
	start  int
	size   int

	subs      map[int]subscriber
	nextSubID int
}

type subscriber struct {
	ch     chan Event
	prefix string
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]subscriber),
	}
}

// Publish marshals data and fans the event out. IDs are assigned under the
// lock so the ring and every subscriber see them in increasing order. Slow
// subscribers miss events rather than block the publisher.
func (h *Hub) Publish(eventType string, data any) {
	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	h.nextID++
	ev := Event{
		ID:   h.nextID,
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}
	h.pushLocked(ev)
	for _, s := range h.subs {
		if s.prefix != "" && !strings.HasPrefix(ev.Type, s.prefix) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a channel of every future event and a cancel func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	return h.SubscribePrefix("")
}

// SubscribePrefix is Subscribe limited to event types starting with prefix.
func (h *Hub) SubscribePrefix(prefix string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = subscriber{ch: ch, prefix: prefix}

	cancel := func() {
		h.mu.Lock()
		if s, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(s.ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = ev
		h.size++
		return
	}
	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
