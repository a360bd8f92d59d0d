// ABOUTME: Conversation identity registry keyed by unordered participant pairs
// ABOUTME: Atomic get-or-create so concurrent first messages share one conversation id

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// pairKey canonicalizes an unordered participant pair
func pairKey(userA, userB int64) (low, high int64) {
	if userA <= userB {
		return userA, userB
	}
	return userB, userA
}

// FindConversationID returns the existing conversation id shared by the
// unordered pair, or ErrNotFound if the pair has never exchanged a message.
func (s *SQLiteStore) FindConversationID(ctx context.Context, userA, userB int64) (string, error) {
	low, high := pairKey(userA, userB)

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE low_user_id = ? AND high_user_id = ?`,
		low, high,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying conversation: %w", err)
	}

	return id, nil
}

// ResolveConversationID returns the conversation id for the pair, minting a
// new one if none exists. The insert races against concurrent first messages
// from either direction; the UNIQUE constraint on the canonical pair makes
// the loser of the race fall back to the winner's id.
func (s *SQLiteStore) ResolveConversationID(ctx context.Context, userA, userB int64) (string, error) {
	id, err := s.FindConversationID(ctx, userA, userB)
	if err == nil {
		return id, nil
	}
	if err != ErrNotFound {
		return "", err
	}

	low, high := pairKey(userA, userB)
	id = uuid.New().String()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, low_user_id, high_user_id, created_at) VALUES (?, ?, ?, ?)`,
		id, low, high, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			// Lost the race: another append minted the id first
			existing, lookupErr := s.FindConversationID(ctx, userA, userB)
			if lookupErr == nil {
				s.logger.Debug("found existing conversation after race",
					"conversation_id", existing)
				return existing, nil
			}
			s.logger.Error("retry lookup failed after duplicate error",
				"lookup_error", lookupErr)
			return "", ErrDuplicatePair
		}
		return "", fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("conversation created",
		"conversation_id", id,
		"low_user_id", low,
		"high_user_id", high)
	return id, nil
}
