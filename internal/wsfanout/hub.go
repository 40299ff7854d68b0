// Package wsfanout is a tiny in-process channel-keyed pub/sub hub used to
// bridge the Task Orchestrator's progress updates and the Notification
// Service's per-user events into the HTTP server's websocket upgrades.
// Grounded on the teacher's events.Bus Subscribe/Emit idiom
// (internal/queue/listeners.go, internal/work/progress.go's EventEmitter
// interface) but keyed by channel string (task id or user id) rather than
// a fixed event-type enum, since both callers need many independent
// broadcast topics rather than one global bus.
package wsfanout

import "sync"

// Hub fans out JSON-able payloads to every subscriber of a channel.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]chan any
	next int
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{subs: make(map[string]map[int]chan any)}
}

// Subscribe registers a new listener on channel and returns its delivery
// queue plus an id to pass to Unsubscribe. The queue is buffered so a slow
// or gone websocket writer cannot block Publish.
func (h *Hub) Subscribe(channel string) (<-chan any, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[int]chan any)
	}
	id := h.next
	h.next++
	ch := make(chan any, 32)
	h.subs[channel][id] = ch
	return ch, id
}

// Unsubscribe removes a listener and closes its queue.
func (h *Hub) Unsubscribe(channel string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	listeners, ok := h.subs[channel]
	if !ok {
		return
	}
	if ch, ok := listeners[id]; ok {
		close(ch)
		delete(listeners, id)
	}
	if len(listeners) == 0 {
		delete(h.subs, channel)
	}
}

// Publish delivers payload to every current subscriber of channel,
// dropping it for any subscriber whose queue is full rather than
// blocking — a lagging websocket client must never stall the publisher.
func (h *Hub) Publish(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// SubscriberCount reports how many listeners a channel currently has,
// used by callers that only want to do work (e.g. assemble a snapshot)
// when someone is actually listening.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channel])
}
