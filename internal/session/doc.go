// Package session is the in-process client of the conversation service.
//
// A Session holds one signed-in user's view of their conversations: a
// thread per partner, each merging three streams that can interleave
// arbitrarily. History loads seed a thread, sends append optimistically
// before the store confirms them, and broadcast events arrive whenever
// the other side (or another device of the same user) sends.
//
// Two rules keep the merged view coherent. Every entry carries the
// client token of the send that produced it, and a message arriving with
// a token the thread already holds replaces that entry instead of
// appending, so an optimistic copy and its stored echo never render
// twice. And every merge re-sorts the thread by timestamp, because the
// store and the realtime channel do not deliver in a single order.
package session
