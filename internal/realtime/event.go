// ABOUTME: Wire frames for the realtime channel
// ABOUTME: JSON envelope with hello and message frame types

package realtime

import (
	"time"

	"github.com/subletify/subletify/internal/store"
)

// Frame types on the realtime channel.
const (
	FrameHello   = "hello"
	FrameMessage = "message"
)

// Event is the wire form of a message on the realtime channel. Store-backed
// broadcasts carry the full persisted row; client-originated transient
// publishes may omit the server-assigned fields.
type Event struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	SenderID       int64     `json:"senderId"`
	RecipientID    int64     `json:"recipientId"`
	SenderName     string    `json:"senderName,omitempty"`
	RecipientName  string    `json:"recipientName,omitempty"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	ClientToken    string    `json:"clientToken,omitempty"`
}

// Frame is the envelope for every frame on the channel. The first frame the
// server writes is a hello carrying the session id; the client echoes that
// id on HTTP sends so the resulting broadcast skips this session.
type Frame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Message   *Event `json:"message,omitempty"`
}

// EventFromMessage converts a persisted message to its wire form.
func EventFromMessage(msg *store.Message) *Event {
	return &Event{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		SenderName:     msg.SenderName,
		RecipientName:  msg.RecipientName,
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
		ClientToken:    msg.ClientToken,
	}
}

// Message converts a wire event back to the store shape used inside the hub.
func (e *Event) Message() *store.Message {
	return &store.Message{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		SenderID:       e.SenderID,
		RecipientID:    e.RecipientID,
		SenderName:     e.SenderName,
		RecipientName:  e.RecipientName,
		Text:           e.Text,
		Timestamp:      e.Timestamp,
		ClientToken:    e.ClientToken,
	}
}
