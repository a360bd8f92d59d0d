// ABOUTME: Store interface and data types for subletify persistence
// ABOUTME: Defines User, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when creating a user with an email that is already taken
var ErrDuplicateUser = errors.New("user already exists")

// ErrDuplicatePair is returned when creating a conversation for a participant
// pair that already has one. Callers should re-lookup and reuse the existing id.
var ErrDuplicatePair = errors.New("conversation already exists for pair")

// User is an account in the marketplace. Admin is a role on the entity,
// not a hardcoded email comparison.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
}

// Message is the atomic unit of a conversation. SenderName and RecipientName
// are resolved from the users table at query time, not stored on the row.
// ClientToken is an optional client-generated idempotency token carried
// through to the response and broadcast so sessions can de-duplicate their
// own optimistic copies.
type Message struct {
	ID             string
	ConversationID string
	SenderID       int64
	RecipientID    int64
	SenderName     string
	RecipientName  string
	Text           string
	Timestamp      time.Time
	ClientToken    string
}

// Store defines the interface for user, conversation, and message persistence.
// The store is the single source of truth: realtime delivery is an
// optimization layered on top and never consulted for history.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserName(ctx context.Context, id int64, name string) error

	// Conversation identity. A conversation id is shared by all messages
	// between one unordered pair of users and is always looked up, never
	// derived from the participant ids.
	FindConversationID(ctx context.Context, userA, userB int64) (string, error)
	ResolveConversationID(ctx context.Context, userA, userB int64) (string, error)

	// Messages
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessagesBetween(ctx context.Context, userA, userB int64) ([]*Message, error)
	GetMessagesForUser(ctx context.Context, userID int64) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
