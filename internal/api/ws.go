// ABOUTME: Websocket endpoint joining a user's realtime room
// ABOUTME: Token rides the query string since browsers cannot set ws headers

package api

import (
	"net/http"

	"github.com/subletify/subletify/internal/realtime"
)

// handleWebsocket handles GET /ws?token=.
// A successful upgrade subscribes the connection to the caller's room and
// serves it until either side closes.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.sendJSONError(w, http.StatusUnauthorized, "token query param required")
		return
	}

	id, err := s.tokens.Verify(token)
	if err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "user_id", id.UserID, "error", err)
		return
	}

	realtime.ServeConn(r.Context(), s.hub, conn, id.UserID, s.logger)
}
