// Package conversation provides the message send path and derived
// conversation views.
//
// The Service sits between the HTTP handlers and the store. A send runs:
//
//  1. Validate text and both participants (UnknownUserError names the id)
//  2. Resolve the conversation id atomically via the pair registry
//  3. Persist with a server-assigned timestamp and resolved display names
//  4. Publish to the realtime hub, excluding the originating session
//
// Persistence always precedes fan-out: the store is authoritative and a
// session that misses the broadcast recovers the message on its next fetch.
//
// GroupByPartner turns a user's flat message list into per-partner threads;
// it is order-stable and idempotent. Inbox ordering is a caller concern,
// served by SortByRecentActivity.
package conversation
