package events

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
)

// OpsTopic carries the dispatch.* mirror stream for operators.
const OpsTopic = "ops"

func WorkerTopic(id string) string   { return "worker:" + id }
func CustomerTopic(id string) string { return "customer:" + id }

type Event struct {
	ID    int64           `json:"id"`
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	At    time.Time       `json:"at"`
	Data  json.RawMessage `json:"data"`
}

type subscriber struct {
	ch     chan Event
	topics []string
}

func (s subscriber) wants(topic string) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, topic)
}

// Hub is an in-memory topic pub/sub with a small ring buffer for late
// clients. Publish never blocks: a subscriber whose buffer is full misses
// the event.
type Hub struct {
	nextID  atomic.Int64
	dropped atomic.Int64

	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]subscriber
	nextSubID int
	subBuffer int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	return &Hub{
		ring:      make([]Event, capacity),
		subs:      make(map[int]subscriber),
		subBuffer: 128,
	}
}

// Publish appends an event on topic and returns its id.
func (h *Hub) Publish(topic, eventType string, data any) int64 {
	id := h.nextID.Add(1)

	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	ev := Event{
		ID:    id,
		Topic: topic,
		Type:  eventType,
		At:    time.Now().UTC(),
		Data:  payload,
	}

	h.mu.Lock()
	h.pushLocked(ev)
	for _, sub := range h.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
			log.WithComponent("events").Debug("dropped event for slow subscriber",
				"topic", topic, "type", eventType, "event_id", id)
		}
	}
	h.mu.Unlock()
	return id
}

// Subscribe returns a channel of events on the given topics (all topics when
// none are given) and a cancel func that closes it.
func (h *Hub) Subscribe(topics ...string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, h.subBuffer)
	h.subs[id] = subscriber{ch: ch, topics: normalizeTopics(topics)}

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

// SnapshotSince returns buffered events with ID > lastID on the given topics,
// oldest-first. If lastID is 0, every buffered match is returned.
func (h *Hub) SnapshotSince(lastID int64, topics ...string) []Event {
	filter := subscriber{topics: normalizeTopics(topics)}

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if (lastID == 0 || ev.ID > lastID) && filter.wants(ev.Topic) {
			out = append(out, ev)
		}
	}
	return out
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Subscribers is the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = ev
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}

func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
