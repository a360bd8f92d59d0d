// ABOUTME: Tests for moderation notices
// ABOUTME: Verifies notice wording and message routing

package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subletify/subletify/internal/conversation"
	"github.com/subletify/subletify/internal/store"
)

type recordingSender struct {
	requests []*conversation.SendRequest
	err      error
}

func (s *recordingSender) SendMessage(_ context.Context, req *conversation.SendRequest) (*store.Message, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &store.Message{
		ID:          "m1",
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		Text:        req.Text,
	}, nil
}

func TestListingApproved(t *testing.T) {
	sender := &recordingSender{}
	n := New(sender, nil)

	msg, err := n.ListingApproved(context.Background(), 1, 5, "sublease", "Cozy studio near campus")
	require.NoError(t, err)

	require.Len(t, sender.requests, 1)
	req := sender.requests[0]
	assert.Equal(t, int64(1), req.SenderID)
	assert.Equal(t, int64(5), req.RecipientID)
	assert.Equal(t, "Congrats! Your sublease listing Cozy studio near campus has been approved.", req.Text)
	assert.Equal(t, req.Text, msg.Text)
}

func TestListingRejected(t *testing.T) {
	sender := &recordingSender{}
	n := New(sender, nil)

	_, err := n.ListingRejected(context.Background(), 1, 5, "furniture", "Desk lamp", "Photos are too dark to review.")
	require.NoError(t, err)

	require.Len(t, sender.requests, 1)
	assert.Equal(t, "Your furniture listing Desk lamp has not been approved. Photos are too dark to review.", sender.requests[0].Text)
}

func TestNotifier_SendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("store down")}
	n := New(sender, nil)

	_, err := n.ListingApproved(context.Background(), 1, 5, "sublease", "Cozy studio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moderation notice")
}
