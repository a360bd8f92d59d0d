// ABOUTME: Account endpoints: registration, login, and profile lookup
// ABOUTME: Login mints the JWT used by both the API and the websocket

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/subletify/subletify/internal/auth"
	"github.com/subletify/subletify/internal/store"
)

// createUserRequest is the JSON request body for POST /api/users.
type createUserRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// loginRequest is the JSON request body for POST /api/login.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// userResponse is the public shape of a user. The password hash never
// leaves the server.
type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin,omitempty"`
}

// loginResponse is the JSON response for POST /api/login.
type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *store.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Admin: u.Admin}
}

// handleCreateUser handles POST /api/users.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &store.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := s.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			s.sendJSONError(w, http.StatusConflict, "email already registered")
			return
		}
		s.logger.Error("creating user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusCreated, toUserResponse(user))
}

// handleLogin handles POST /api/login.
// Unknown emails and wrong passwords get the same answer.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.CheckPassword("", req.Password)
			s.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.logger.Error("login lookup", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.tokens.Mint(auth.Identity{UserID: user.ID, Admin: user.Admin})
	if err != nil {
		s.logger.Error("minting token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, loginResponse{Token: token, User: toUserResponse(user)})
}

// updateUserRequest is the JSON request body for PATCH /api/users/{id}.
type updateUserRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// handleUpdateUser handles PATCH /api/users/{id}.
// Users rename themselves; admins may rename anyone.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || userID <= 0 {
		s.sendJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if caller.UserID != userID && !caller.Admin {
		s.sendJSONError(w, http.StatusForbidden, "cannot modify another user")
		return
	}

	var req updateUserRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	if err := s.users.UpdateUserName(r.Context(), userID, req.Name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("updating user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("reloading user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.sendJSON(w, http.StatusOK, toUserResponse(user))
}

// handleGetUser handles GET /api/users/{id}.
// Email and admin flag are only included when the caller asks about
// themselves or is an admin.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || userID <= 0 {
		s.sendJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("user lookup", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toUserResponse(user)
	if caller.UserID != user.ID && !caller.Admin {
		resp.Email = ""
		resp.Admin = false
	}
	s.sendJSON(w, http.StatusOK, resp)
}
