// ABOUTME: Message log persistence and retrieval for conversations
// ABOUTME: Joins the users table to stamp sender/recipient display names on each row

package store

import (
	"context"
	"fmt"
	"time"
)

// messageColumns is the SELECT list shared by all message queries. Display
// names come from the join, so renames are reflected on old messages.
const messageColumns = `
	m.id, m.conversation_id, m.sender_id, m.recipient_id,
	u1.name AS sender_name, u2.name AS recipient_name,
	m.text, m.timestamp, m.client_token
`

// AppendMessage persists a message row. The caller is responsible for
// resolving the conversation id and assigning the server timestamp; the
// store only writes what it is given.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, text, timestamp, client_token)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var token any
	if msg.ClientToken != "" {
		token = msg.ClientToken
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.RecipientID,
		msg.Text,
		msg.Timestamp.UTC().Format(timeFormat),
		token,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("saved message",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_id", msg.SenderID,
		"recipient_id", msg.RecipientID,
	)
	return nil
}

// GetMessagesBetween retrieves all messages exchanged between the unordered
// pair, ascending by timestamp with insertion order breaking ties.
func (s *SQLiteStore) GetMessagesBetween(ctx context.Context, userA, userB int64) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u1 ON m.sender_id = u1.id
		JOIN users u2 ON m.recipient_id = u2.id
		WHERE (m.sender_id = ? AND m.recipient_id = ?)
		   OR (m.sender_id = ? AND m.recipient_id = ?)
		ORDER BY m.timestamp ASC, m.rowid ASC
	`

	return s.queryMessages(ctx, query, userA, userB, userB, userA)
}

// GetMessagesForUser retrieves all messages where the user is sender or
// recipient, ascending by timestamp. Feeds the conversation aggregator.
func (s *SQLiteStore) GetMessagesForUser(ctx context.Context, userID int64) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u1 ON m.sender_id = u1.id
		JOIN users u2 ON m.recipient_id = u2.id
		WHERE m.sender_id = ? OR m.recipient_id = ?
		ORDER BY m.timestamp ASC, m.rowid ASC
	`

	return s.queryMessages(ctx, query, userID, userID)
}

// queryMessages is a helper that executes a query and returns messages
func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		var timestampStr string
		var token *string

		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.RecipientID,
			&msg.SenderName,
			&msg.RecipientName,
			&msg.Text,
			&timestampStr,
			&token,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Timestamp, err = time.Parse(timeFormat, timestampStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		if token != nil {
			msg.ClientToken = *token
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}
