// ABOUTME: Message endpoints: history, inbox grouping, and sends
// ABOUTME: Wire format uses camelCase fields matching the web client

package api

import (
	"net/http"
	"strconv"

	"github.com/subletify/subletify/internal/auth"
	"github.com/subletify/subletify/internal/conversation"
	"github.com/subletify/subletify/internal/realtime"
	"github.com/subletify/subletify/internal/store"
)

// sendMessageRequest is the JSON request body for POST /api/messages.
type sendMessageRequest struct {
	SenderID    int64  `json:"senderId" validate:"required,gt=0"`
	RecipientID int64  `json:"recipientId" validate:"required,gt=0"`
	Text        string `json:"text" validate:"required"`
	ClientToken string `json:"clientToken" validate:"omitempty,max=128"`
}

// historyResponse is the JSON response for GET /api/messages. When the
// pair has no messages yet, recipientName still identifies the partner so
// the client can render an empty conversation view.
type historyResponse struct {
	HasMessages   bool              `json:"hasMessages"`
	RecipientName string            `json:"recipientName,omitempty"`
	Messages      []*realtime.Event `json:"messages,omitempty"`
}

// conversationResponse is one inbox entry for GET /api/messages/conversations.
type conversationResponse struct {
	PartnerID   int64             `json:"partnerId"`
	PartnerName string            `json:"partnerName"`
	Messages    []*realtime.Event `json:"messages"`
}

func toEvents(messages []*store.Message) []*realtime.Event {
	events := make([]*realtime.Event, len(messages))
	for i, m := range messages {
		events[i] = realtime.EventFromMessage(m)
	}
	return events
}

// handleHistory handles GET /api/messages?recipientId=N.
// It returns the full exchange between the caller and the recipient.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	recipientID, err := strconv.ParseInt(r.URL.Query().Get("recipientId"), 10, 64)
	if err != nil || recipientID <= 0 {
		s.sendJSONError(w, http.StatusBadRequest, "recipientId query param required")
		return
	}

	hist, err := s.conv.History(r.Context(), id.UserID, recipientID)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := historyResponse{HasMessages: hist.HasMessages}
	if hist.HasMessages {
		resp.Messages = toEvents(hist.Messages)
	} else {
		resp.RecipientName = hist.PartnerName
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleInbox handles GET /api/messages/conversations.
// It returns the caller's conversations grouped by partner, most recent
// activity first.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	convs, err := s.conv.Inbox(r.Context(), id.UserID)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := make([]conversationResponse, len(convs))
	for i, c := range convs {
		resp[i] = conversationResponse{
			PartnerID:   c.PartnerID,
			PartnerName: c.PartnerName,
			Messages:    toEvents(c.Messages),
		}
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleSendMessage handles POST /api/messages.
// The X-Session-ID header names the caller's realtime session so the
// broadcast skips echoing back to it.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req sendMessageRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	// Callers send as themselves. Admins may send as anyone, which the
	// moderation flow relies on.
	if req.SenderID != id.UserID && !id.Admin {
		s.sendJSONError(w, http.StatusForbidden, "senderId must match the authenticated user")
		return
	}

	msg, err := s.conv.SendMessage(r.Context(), &conversation.SendRequest{
		SenderID:        req.SenderID,
		RecipientID:     req.RecipientID,
		Text:            req.Text,
		ClientToken:     req.ClientToken,
		OriginSessionID: r.Header.Get("X-Session-ID"),
	})
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	s.sendJSON(w, http.StatusCreated, realtime.EventFromMessage(msg))
}
