// ABOUTME: User directory boundary for identity resolution
// ABOUTME: Stamps display names on messages and backs UnknownUser validation

package directory

import (
	"context"

	"github.com/subletify/subletify/internal/store"
)

// UserRef is the minimal identity the conversation layer needs: who a user
// id belongs to and what to call them in a conversation view.
type UserRef struct {
	ID   int64
	Name string
}

// Directory resolves user ids to identities. The conversation service depends
// on this interface rather than the full store so tests can substitute a
// fixed roster.
type Directory interface {
	ResolveUser(ctx context.Context, id int64) (*UserRef, error)
}

// UserStore is the slice of the store the directory needs.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// StoreDirectory resolves users from the relational store.
type StoreDirectory struct {
	store UserStore
}

// New creates a store-backed directory.
func New(userStore UserStore) *StoreDirectory {
	return &StoreDirectory{store: userStore}
}

// ResolveUser returns the identity for id, or store.ErrNotFound if no such
// user exists.
func (d *StoreDirectory) ResolveUser(ctx context.Context, id int64) (*UserRef, error) {
	user, err := d.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &UserRef{ID: user.ID, Name: user.Name}, nil
}
