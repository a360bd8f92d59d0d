// Package client is a Go client for the subletify messaging server.
//
// It wraps the HTTP API (login, sends, history, inbox) and the realtime
// websocket channel behind one Client. After Connect, the client holds
// the session id from the server's hello frame and attaches it to every
// send, so its own broadcasts are not echoed back to it.
//
// Client satisfies session.Backend, which lets the conversation session
// in internal/session run unchanged against a remote server.
package client
