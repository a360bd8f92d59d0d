// ABOUTME: In-memory fan-out hub for realtime message delivery
// ABOUTME: Per-user rooms so a publish reaches only the two participants' sessions

package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/subletify/subletify/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each session.
	subscriberBufferSize = 64
)

// Hub provides in-memory pub/sub for newly persisted messages. Sessions
// subscribe under their user id; a published message is delivered to the
// sessions of its two participants only, never to unrelated clients. The hub
// is an injected service with no global state, so handlers share one
// instance by construction rather than by package-level singleton.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[string]chan *store.Message // userID -> sessionID -> ch
	logger *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[int64]map[string]chan *store.Message),
		logger: logger.With("component", "realtime"),
	}
}

// Subscribe registers a session for the user's room. Returns the delivery
// channel and a session id for exclusion and unsubscription. The session is
// automatically cleaned up when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, userID int64) (<-chan *store.Message, string) {
	sessionID := uuid.New().String()
	ch := make(chan *store.Message, subscriberBufferSize)

	h.mu.Lock()
	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[string]chan *store.Message)
	}
	h.rooms[userID][sessionID] = ch
	h.mu.Unlock()

	h.logger.Debug("session subscribed",
		"user_id", userID,
		"session_id", sessionID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		h.Unsubscribe(userID, sessionID)
	}()

	return ch, sessionID
}

// Publish delivers a message to every session of its sender and recipient,
// except the session identified by excludeSessionID (the originator already
// has the message in local state). Non-blocking: a full session channel
// drops the event for that session only. No delivery guarantee is made.
func (h *Hub) Publish(msg *store.Message, excludeSessionID string) {
	participants := []int64{msg.SenderID, msg.RecipientID}
	if msg.SenderID == msg.RecipientID {
		participants = participants[:1]
	}

	// Send while holding the read lock: channels are only closed under the
	// write lock, so a send here can never race a close. Sends are
	// non-blocking, so the lock is never held waiting on a slow session.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range participants {
		for sessionID, ch := range h.rooms[userID] {
			if excludeSessionID != "" && sessionID == excludeSessionID {
				continue
			}
			select {
			case ch <- msg:
			default:
				// Session channel full, drop the event for this session
				h.logger.Debug("dropped event for slow session",
					"message_id", msg.ID)
			}
		}
	}
}

// Unsubscribe removes a session and closes its channel.
func (h *Hub) Unsubscribe(userID int64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.rooms[userID]
	if !ok {
		return
	}

	ch, exists := sessions[sessionID]
	if !exists {
		return
	}

	delete(sessions, sessionID)
	close(ch)

	if len(sessions) == 0 {
		delete(h.rooms, userID)
	}

	h.logger.Debug("session unsubscribed",
		"user_id", userID,
		"session_id", sessionID)
}

// Close shuts down the hub and closes all session channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, sessions := range h.rooms {
		for sessionID, ch := range sessions {
			close(ch)
			delete(sessions, sessionID)
		}
		delete(h.rooms, userID)
	}

	h.logger.Debug("hub closed")
}
