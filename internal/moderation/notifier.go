// ABOUTME: Listing moderation notices delivered as ordinary messages
// ABOUTME: Approval and rejection texts sent from the reviewing admin

package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/subletify/subletify/internal/conversation"
	"github.com/subletify/subletify/internal/store"
)

// Sender is the slice of the conversation service the notifier uses.
type Sender interface {
	SendMessage(ctx context.Context, req *conversation.SendRequest) (*store.Message, error)
}

// Notifier tells listing owners the outcome of a moderation review. The
// notices travel through the normal message pipeline, so owners see them
// in their inbox as a conversation with the reviewing admin and receive
// them live when connected.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

// New creates a moderation notifier.
func New(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sender: sender,
		logger: logger.With("component", "moderation"),
	}
}

// ListingApproved notifies ownerID that their listing passed review.
// kind is the listing category ("sublease", "furniture") and description
// identifies the listing in the notice text.
func (n *Notifier) ListingApproved(ctx context.Context, adminID, ownerID int64, kind, description string) (*store.Message, error) {
	text := fmt.Sprintf("Congrats! Your %s listing %s has been approved.", kind, description)
	return n.send(ctx, adminID, ownerID, text)
}

// ListingRejected notifies ownerID that their listing failed review,
// appending the reviewer's reason when one was given.
func (n *Notifier) ListingRejected(ctx context.Context, adminID, ownerID int64, kind, description, reason string) (*store.Message, error) {
	text := fmt.Sprintf("Your %s listing %s has not been approved. %s", kind, description, reason)
	return n.send(ctx, adminID, ownerID, text)
}

func (n *Notifier) send(ctx context.Context, adminID, ownerID int64, text string) (*store.Message, error) {
	msg, err := n.sender.SendMessage(ctx, &conversation.SendRequest{
		SenderID:    adminID,
		RecipientID: ownerID,
		Text:        text,
	})
	if err != nil {
		n.logger.Error("moderation notice failed",
			"admin_id", adminID, "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("sending moderation notice: %w", err)
	}
	return msg, nil
}
