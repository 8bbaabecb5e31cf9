// Package notify provides the in-process broadcast channel for
// state-change notifications. Delivery is fire-and-forget: publishing
// never blocks and never fails a mutation.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the mutation path.
const (
	EventCreated = "event_created"
	EventUpdated = "event_updated"
	EventDeleted = "event_deleted"
	EventShared  = "event_shared"
)

// Message is one broadcast notification. The ID is a UUIDv7 so consumers
// can use it as a time-ordered resume cursor.
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Room      string    `json:"room"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// EventRoom is the interested-party channel key for a single event.
func EventRoom(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}

// Hub fans messages out to subscribers. A subscriber registered with an
// empty room receives everything; otherwise only its room's messages.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Message]string
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Message]string)}
}

// Publish broadcasts a notification to all matching subscribers.
// Subscribers that are behind are skipped so the mutation path never
// waits on delivery.
func (h *Hub) Publish(eventType, room string, payload any) Message {
	msg := Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Room:      room,
		Payload:   payload,
		Timestamp: time.Now().Truncate(time.Microsecond),
	}

	h.mu.RLock()
	for ch, want := range h.subs {
		if want != "" && want != room {
			continue
		}
		select {
		case ch <- msg:
		default:
			// subscriber is behind; drop to avoid blocking Publish
		}
	}
	h.mu.RUnlock()

	return msg
}

// Subscribe returns a buffered channel receiving messages for the given
// room, or all messages when room is empty.
func (h *Hub) Subscribe(room string) chan Message {
	ch := make(chan Message, 64)
	h.mu.Lock()
	h.subs[ch] = room
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}
