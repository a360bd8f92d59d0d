// Package dedupe provides a small bounded cache for idempotency tokens.
//
// A client session that sends a message optimistically will later receive
// that same message back over the broadcast channel on its other devices,
// and must not render it twice. The cache remembers the tokens of recent
// sends so echoes can be recognized and folded into the existing entry.
package dedupe
