// Package store provides persistent storage for subletify using SQLite.
//
// # Data Models
//
//   - User: marketplace account with display name and admin role
//   - Message: one entry in the durable conversation log
//
// Conversation identity lives in a dedicated pair registry: one row per
// unordered participant pair with a UNIQUE constraint on the canonical
// (low, high) ordering. ResolveConversationID is an atomic get-or-create,
// so two concurrent first messages between the same pair always converge
// on a single conversation id regardless of direction.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode and a single pooled connection:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as fixed-width RFC 3339 TEXT with nanoseconds so
// ORDER BY on the column matches chronological order; within-timestamp ties
// fall back to rowid, which is insertion order.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateUser: email already registered
//   - ErrDuplicatePair: conversation already exists for the pair
//
// All methods accept context.Context for cancellation support.
package store
