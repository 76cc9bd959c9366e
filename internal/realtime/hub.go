// Package realtime fans ingestion and update events out to connected
// clients. Delivery is at-most-once and best-effort: a subscriber that cannot
// keep up loses events rather than blocking ingestion.
package realtime

import (
	"log/slog"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	EventNewMessage  = "new_message"
	EventMessageRead = "message_read"
	EventSyncUpdate  = "sync_update"

	subscriberBuffer = 16
)

// Event is one realtime push. The "type" key is always present.
type Event map[string]interface{}

type subscriber struct {
	id string
	ch chan Event
}

// Hub maintains one subscriber group per user. Publishing never blocks.
type Hub struct {
	mu    sync.RWMutex
	users map[int64]map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{users: make(map[int64]map[string]*subscriber)}
}

// Subscribe joins the caller to the user's group for the lifetime of the
// connection. The returned id must be passed to Unsubscribe on disconnect.
func (h *Hub) Subscribe(userID int64) (string, <-chan Event) {
	id, err := gonanoid.New()
	if err != nil {
		// Only fails when the OS entropy source does.
		panic(err)
	}

	sub := &subscriber{id: id, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]*subscriber)
	}
	h.users[userID][id] = sub

	return id, sub.ch
}

func (h *Hub) Unsubscribe(userID int64, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.users[userID]
	if subs == nil {
		return
	}
	if sub, ok := subs[id]; ok {
		delete(subs, id)
		close(sub.ch)
	}
	if len(subs) == 0 {
		delete(h.users, userID)
	}
}

// Broadcast publishes an event to every subscriber of the user. Fire and
// forget: a full subscriber buffer drops the event with a debug log, never a
// retry.
func (h *Hub) Broadcast(userID int64, eventType string, payload map[string]interface{}) {
	evt := Event{"type": eventType}
	for k, v := range payload {
		evt[k] = v
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.users[userID] {
		select {
		case sub.ch <- evt:
		default:
			slog.Debug("realtime: dropping event for slow subscriber",
				"user_id", userID, "subscriber", sub.id, "event", eventType)
		}
	}
}

// SubscriberCount reports the number of live subscribers for a user.
func (h *Hub) SubscriberCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
