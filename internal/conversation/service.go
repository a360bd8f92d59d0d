// ABOUTME: ConversationService is the central layer for message persistence
// ABOUTME: All sends flow through here - the store is the source of truth, broadcast is best-effort

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subletify/subletify/internal/directory"
	"github.com/subletify/subletify/internal/store"
)

// MessageStore defines what the service needs from storage
type MessageStore interface {
	ResolveConversationID(ctx context.Context, userA, userB int64) (string, error)
	AppendMessage(ctx context.Context, msg *store.Message) error
	GetMessagesBetween(ctx context.Context, userA, userB int64) ([]*store.Message, error)
	GetMessagesForUser(ctx context.Context, userID int64) ([]*store.Message, error)
}

// Publisher fans a persisted message out to connected sessions. Delivery is
// best-effort: the service never treats a publish as part of send success.
type Publisher interface {
	Publish(msg *store.Message, excludeSessionID string)
}

// Service coordinates message sends: identity validation, conversation-id
// resolution, persistence, and realtime fan-out, in that order.
type Service struct {
	store     MessageStore
	directory directory.Directory
	publisher Publisher
	logger    *slog.Logger
}

// New creates a conversation service. publisher may be nil, in which case
// sends persist without realtime fan-out (store-only delivery).
func New(messageStore MessageStore, dir directory.Directory, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     messageStore,
		directory: dir,
		publisher: publisher,
		logger:    logger.With("component", "conversation"),
	}
}

// SendRequest contains everything needed to send one message.
type SendRequest struct {
	SenderID    int64
	RecipientID int64
	Text        string

	// ClientToken is the sender's idempotency token, echoed back on the
	// persisted message and its broadcast copy.
	ClientToken string

	// OriginSessionID identifies the realtime session that initiated the
	// send, so the broadcast skips echoing to it. Empty for sends that have
	// no live session (moderation notices, plain HTTP clients).
	OriginSessionID string
}

// History is the result of fetching messages between two users. When the
// pair has never exchanged a message, PartnerName still carries the
// recipient's display name for an empty-state conversation view.
type History struct {
	HasMessages bool
	PartnerName string
	Messages    []*store.Message
}

// SendMessage validates, persists, and broadcasts one message.
//
// Key principle: record first, then fan out. The message is durable before
// any session hears about it, so a missed broadcast is always recoverable
// from the store.
func (s *Service) SendMessage(ctx context.Context, req *SendRequest) (*store.Message, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyMessage
	}

	sender, err := s.resolveParticipant(ctx, req.SenderID, "sender")
	if err != nil {
		return nil, err
	}
	recipient, err := s.resolveParticipant(ctx, req.RecipientID, "recipient")
	if err != nil {
		return nil, err
	}

	convID, err := s.store.ResolveConversationID(ctx, req.SenderID, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving conversation: %w", ErrStorageUnavailable, err)
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		SenderID:       sender.ID,
		RecipientID:    recipient.ID,
		SenderName:     sender.Name,
		RecipientName:  recipient.Name,
		Text:           req.Text,
		Timestamp:      time.Now(),
		ClientToken:    req.ClientToken,
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: appending message: %w", ErrStorageUnavailable, err)
	}

	s.logger.Debug("message recorded",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_id", msg.SenderID,
		"recipient_id", msg.RecipientID)

	if s.publisher != nil {
		s.publisher.Publish(msg, req.OriginSessionID)
	}

	return msg, nil
}

// History returns all messages between self and partner in ascending
// timestamp order. An empty conversation still resolves the partner's
// display name; an unknown partner is an UnknownUserError.
func (s *Service) History(ctx context.Context, selfID, partnerID int64) (*History, error) {
	partner, err := s.resolveParticipant(ctx, partnerID, "recipient")
	if err != nil {
		return nil, err
	}

	messages, err := s.store.GetMessagesBetween(ctx, selfID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching messages: %w", ErrStorageUnavailable, err)
	}

	return &History{
		HasMessages: len(messages) > 0,
		PartnerName: partner.Name,
		Messages:    messages,
	}, nil
}

// Inbox returns the user's conversations grouped by partner, ordered
// most-recent-activity-first.
func (s *Service) Inbox(ctx context.Context, userID int64) ([]*Conversation, error) {
	messages, err := s.store.GetMessagesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching messages: %w", ErrStorageUnavailable, err)
	}

	conversations := GroupByPartner(userID, messages)
	SortByRecentActivity(conversations)
	return conversations, nil
}

// resolveParticipant maps a missing user onto UnknownUserError and anything
// else onto StorageUnavailable.
func (s *Service) resolveParticipant(ctx context.Context, id int64, role string) (*directory.UserRef, error) {
	ref, err := s.directory.ResolveUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &UnknownUserError{UserID: id, Role: role}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: resolving user %d: %w", ErrStorageUnavailable, id, err)
	}
	return ref, nil
}
