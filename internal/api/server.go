// ABOUTME: HTTP surface for the messaging service
// ABOUTME: Route registration, JSON helpers, and shared error mapping

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/subletify/subletify/internal/auth"
	"github.com/subletify/subletify/internal/conversation"
	"github.com/subletify/subletify/internal/realtime"
	"github.com/subletify/subletify/internal/store"
)

// Server wires the conversation service, user store, realtime hub, and
// token service behind HTTP handlers.
type Server struct {
	conv     *conversation.Service
	users    store.Store
	hub      *realtime.Hub
	tokens   *auth.Tokens
	validate *validator.Validate
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(conv *conversation.Service, users store.Store, hub *realtime.Hub, tokens *auth.Tokens, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		conv:     conv,
		users:    users,
		hub:      hub,
		tokens:   tokens,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With("component", "api"),
	}
}

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Public surface: account creation, login, liveness.
	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Everything touching messages requires a verified caller.
	mux.Handle("GET /api/messages", s.authed(s.handleHistory))
	mux.Handle("GET /api/messages/conversations", s.authed(s.handleInbox))
	mux.Handle("POST /api/messages", s.authed(s.handleSendMessage))
	mux.Handle("GET /api/users/{id}", s.authed(s.handleGetUser))
	mux.Handle("PATCH /api/users/{id}", s.authed(s.handleUpdateUser))

	// Websockets carry the token as a query parameter.
	mux.HandleFunc("GET /ws", s.handleWebsocket)
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(s.tokens, h)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendJSON writes a JSON response with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendServiceError maps conversation service failures onto HTTP statuses.
// Unknown participants and empty text are the caller's fault; a storage
// failure is ours.
func (s *Server) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		s.sendJSONError(w, http.StatusBadRequest, "message text is required")
	case conversation.IsUnknownUser(err):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("service error", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeAndValidate parses a JSON body into dst and runs struct validation.
// Returns false after writing the error response.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
