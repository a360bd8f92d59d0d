// ABOUTME: Error taxonomy for the conversation layer
// ABOUTME: UnknownUser, InvalidMessage, and StorageUnavailable conditions

package conversation

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned when a send carries no text.
var ErrEmptyMessage = errors.New("message text must not be empty")

// ErrStorageUnavailable wraps datastore failures. The caller sees a generic
// server failure; the store is not retried internally.
var ErrStorageUnavailable = errors.New("storage unavailable")

// UnknownUserError reports a sender or recipient id that does not reference
// an existing user. The offending id is carried so the caller can name it.
type UnknownUserError struct {
	UserID int64
	Role   string // "sender" or "recipient"
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("%s id %d does not exist", e.Role, e.UserID)
}

// IsUnknownUser reports whether err is an UnknownUserError.
func IsUnknownUser(err error) bool {
	var unknown *UnknownUserError
	return errors.As(err, &unknown)
}
