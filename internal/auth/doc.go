// Package auth provides authentication for the messaging API.
//
// Users authenticate with email and password (bcrypt-hashed) and receive
// an HS256 JWT carrying their user id and admin flag. The same token
// authorizes both the HTTP API (Authorization: Bearer header) and the
// websocket upgrade (token query parameter, since browsers cannot set
// headers on websocket requests).
//
// Handlers read the verified caller with FromContext after the
// RequireAuth middleware has run.
package auth
