// Package realtime provides best-effort fan-out of newly persisted messages
// to connected websocket sessions.
//
// The Hub keeps one room per user id. A publish reaches the sessions of the
// message's two participants only, excluding the session that originated
// the send, so clients never see their own echo and unrelated clients never
// see the message at all.
//
// Delivery is at-most-once with no replay: a session that is disconnected
// during a publish permanently misses the live event and recovers the
// message from the store on its next fetch. Slow sessions drop events
// rather than block the publisher.
package realtime
