// Package api exposes the messaging service over HTTP.
//
// Endpoints:
//
//	POST /api/users                     register an account
//	POST /api/login                     exchange credentials for a JWT
//	GET  /api/users/{id}                look up a user's display name
//	PATCH /api/users/{id}               rename an account
//	GET  /api/messages?recipientId=     full history with one partner
//	GET  /api/messages/conversations    inbox grouped by partner
//	POST /api/messages                  send one message
//	GET  /ws?token=                     realtime channel
//	GET  /healthz                       liveness
//
// Message endpoints require a bearer token. Sends accept an optional
// X-Session-ID header naming the caller's realtime session, which the
// broadcast then skips. JSON field names are camelCase to match the web
// client's wire format.
package api
