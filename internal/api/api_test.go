// ABOUTME: HTTP wire-contract tests for the messaging API
// ABOUTME: Exercises real store, hub, and handlers through httptest

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subletify/subletify/internal/auth"
	"github.com/subletify/subletify/internal/conversation"
	"github.com/subletify/subletify/internal/directory"
	"github.com/subletify/subletify/internal/realtime"
	"github.com/subletify/subletify/internal/store"
)

type fixture struct {
	t      *testing.T
	srv    *httptest.Server
	store  store.Store
	hub    *realtime.Hub
	tokens *auth.Tokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hub := realtime.NewHub(nil)
	t.Cleanup(hub.Close)

	conv := conversation.New(st, directory.New(st), hub, nil)
	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)

	mux := http.NewServeMux()
	NewServer(conv, st, hub, tokens, nil).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &fixture{t: t, srv: srv, store: st, hub: hub, tokens: tokens}
}

func (f *fixture) createUser(name, email string, admin bool) *store.User {
	f.t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(f.t, err)
	u := &store.User{Name: name, Email: email, PasswordHash: hash, Admin: admin}
	require.NoError(f.t, f.store.CreateUser(f.t.Context(), u))
	return u
}

func (f *fixture) tokenFor(u *store.User) string {
	f.t.Helper()
	token, err := f.tokens.Mint(auth.Identity{UserID: u.ID, Admin: u.Admin})
	require.NoError(f.t, err)
	return token
}

// request issues an HTTP request with optional bearer token and JSON body.
func (f *fixture) request(method, path, token string, body any) *http.Response {
	f.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(f.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSendMessage_PersistsAndReturnsStoredCopy(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)

	resp := f.request(http.MethodPost, "/api/messages", f.tokenFor(alice), map[string]any{
		"senderId":    alice.ID,
		"recipientId": bob.ID,
		"text":        "is the room still free?",
		"clientToken": "tok-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	sent := decodeBody[realtime.Event](t, resp)
	assert.NotEmpty(t, sent.ID)
	assert.NotEmpty(t, sent.ConversationID)
	assert.Equal(t, "Bob", sent.RecipientName)
	assert.Equal(t, "Alice", sent.SenderName)
	assert.Equal(t, "tok-1", sent.ClientToken)

	// The message is durable: history returns it.
	resp = f.request(http.MethodGet, fmt.Sprintf("/api/messages?recipientId=%d", bob.ID), f.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decodeBody[struct {
		HasMessages bool             `json:"hasMessages"`
		Messages    []realtime.Event `json:"messages"`
	}](t, resp)
	require.True(t, hist.HasMessages)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, sent.ID, hist.Messages[0].ID)
}

func TestSendMessage_UnknownRecipientRejected(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)

	resp := f.request(http.MethodPost, "/api/messages", f.tokenFor(alice), map[string]any{
		"senderId":    alice.ID,
		"recipientId": 999,
		"text":        "hello?",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Contains(t, body["error"], "999")

	// Nothing persisted for the phantom pair.
	resp = f.request(http.MethodGet, "/api/messages?recipientId=999", f.tokenFor(alice), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_EmptyTextRejected(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)

	for _, text := range []string{"   ", "\n\t"} {
		resp := f.request(http.MethodPost, "/api/messages", f.tokenFor(alice), map[string]any{
			"senderId":    alice.ID,
			"recipientId": bob.ID,
			"text":        text,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "text %q should be rejected", text)
	}
}

func TestSendMessage_SenderMustMatchCaller(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)

	resp := f.request(http.MethodPost, "/api/messages", f.tokenFor(alice), map[string]any{
		"senderId":    bob.ID,
		"recipientId": alice.ID,
		"text":        "impersonation attempt",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSendMessage_AdminMaySendAsOthers(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser("Admin", "admin@example.com", true)
	bob := f.createUser("Bob", "bob@example.com", false)

	resp := f.request(http.MethodPost, "/api/messages", f.tokenFor(admin), map[string]any{
		"senderId":    admin.ID,
		"recipientId": bob.ID,
		"text":        "Congrats! Your sublease listing Cozy studio has been approved.",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSendMessage_RequiresAuth(t *testing.T) {
	f := newFixture(t)
	resp := f.request(http.MethodPost, "/api/messages", "", map[string]any{
		"senderId": 1, "recipientId": 2, "text": "hi",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHistory_EmptyConversationCarriesRecipientName(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)

	resp := f.request(http.MethodGet, fmt.Sprintf("/api/messages?recipientId=%d", bob.ID), f.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	hist := decodeBody[map[string]any](t, resp)
	assert.Equal(t, false, hist["hasMessages"])
	assert.Equal(t, "Bob", hist["recipientName"])
	assert.NotContains(t, hist, "messages")
}

func TestInbox_GroupedByPartnerMostRecentFirst(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)
	carol := f.createUser("Carol", "carol@example.com", false)

	send := func(token string, sender, recipient int64, text string) {
		resp := f.request(http.MethodPost, "/api/messages", token, map[string]any{
			"senderId": sender, "recipientId": recipient, "text": text,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	send(f.tokenFor(alice), alice.ID, bob.ID, "hey bob")
	send(f.tokenFor(bob), bob.ID, alice.ID, "hey alice")
	send(f.tokenFor(carol), carol.ID, alice.ID, "hi, about your listing")

	resp := f.request(http.MethodGet, "/api/messages/conversations", f.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	inbox := decodeBody[[]conversationResponse](t, resp)
	require.Len(t, inbox, 2)

	// Carol wrote last, so her conversation leads.
	assert.Equal(t, carol.ID, inbox[0].PartnerID)
	assert.Equal(t, "Carol", inbox[0].PartnerName)
	require.Len(t, inbox[0].Messages, 1)

	assert.Equal(t, bob.ID, inbox[1].PartnerID)
	require.Len(t, inbox[1].Messages, 2)
	assert.Equal(t, "hey bob", inbox[1].Messages[0].Text)
	assert.Equal(t, "hey alice", inbox[1].Messages[1].Text)
}

func TestHistoryAndInbox_IdentityComesFromToken(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)
	carol := f.createUser("Carol", "carol@example.com", false)

	resp := f.request(http.MethodPost, "/api/messages", f.tokenFor(alice), map[string]any{
		"senderId": alice.ID, "recipientId": bob.ID, "text": "for bob only",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Carol names Alice's side of the pair in the query string; the
	// handler must still read the caller from the token and show Carol's
	// own (empty) exchange with Bob.
	path := fmt.Sprintf("/api/messages?senderId=%d&recipientId=%d", alice.ID, bob.ID)
	resp = f.request(http.MethodGet, path, f.tokenFor(carol), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	hist := decodeBody[map[string]any](t, resp)
	assert.Equal(t, false, hist["hasMessages"])
	assert.NotContains(t, hist, "messages")

	resp = f.request(http.MethodGet, fmt.Sprintf("/api/messages/conversations?userId=%d", alice.ID), f.tokenFor(carol), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]conversationResponse](t, resp))
}

func TestCreateUserAndLogin(t *testing.T) {
	f := newFixture(t)

	resp := f.request(http.MethodPost, "/api/users", "", map[string]any{
		"name": "Dana", "email": "dana@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[userResponse](t, resp)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Dana", created.Name)

	// Duplicate registration conflicts.
	resp = f.request(http.MethodPost, "/api/users", "", map[string]any{
		"name": "Dana Again", "email": "dana@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Wrong password gets the generic answer.
	resp = f.request(http.MethodPost, "/api/login", "", map[string]any{
		"email": "dana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct login yields a usable token.
	resp = f.request(http.MethodPost, "/api/login", "", map[string]any{
		"email": "dana@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decodeBody[loginResponse](t, resp)
	require.NotEmpty(t, login.Token)

	resp = f.request(http.MethodGet, "/api/messages/conversations", login.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateUser_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"email": "x@example.com", "password": "password123"}},
		{"bad email", map[string]any{"name": "X", "email": "not-an-email", "password": "password123"}},
		{"short password", map[string]any{"name": "X", "email": "x@example.com", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.request(http.MethodPost, "/api/users", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetUser_HidesPrivateFieldsFromOthers(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)

	resp := f.request(http.MethodGet, fmt.Sprintf("/api/users/%d", bob.ID), f.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	other := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "Bob", other["name"])
	assert.NotContains(t, other, "email")

	resp = f.request(http.MethodGet, fmt.Sprintf("/api/users/%d", alice.ID), f.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	self := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "alice@example.com", self["email"])
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)

	// Renaming yourself works and the new name shows up everywhere.
	resp := f.request(http.MethodPatch, fmt.Sprintf("/api/users/%d", alice.ID), f.tokenFor(alice),
		map[string]any{"name": "Alicia"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[userResponse](t, resp)
	assert.Equal(t, "Alicia", updated.Name)

	// Renaming someone else is forbidden for non-admins.
	resp = f.request(http.MethodPatch, fmt.Sprintf("/api/users/%d", bob.ID), f.tokenFor(alice),
		map[string]any{"name": "Robert"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Empty name fails validation.
	resp = f.request(http.MethodPatch, fmt.Sprintf("/api/users/%d", alice.ID), f.tokenFor(alice),
		map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUser_NotFound(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)

	resp := f.request(http.MethodGet, "/api/users/999", f.tokenFor(alice), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.request(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// dialWS connects a websocket session and reads the hello frame.
func dialWS(t *testing.T, srvURL, token string) (*websocket.Conn, string) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/ws?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello realtime.Frame
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, realtime.FrameHello, hello.Type)
	require.NotEmpty(t, hello.SessionID)
	return conn, hello.SessionID
}

func TestWebsocket_BroadcastReachesRecipientNotOrigin(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser("Alice", "alice@example.com", false)
	bob := f.createUser("Bob", "bob@example.com", false)

	aliceConn, aliceSession := dialWS(t, f.srv.URL, f.tokenFor(alice))
	bobConn, _ := dialWS(t, f.srv.URL, f.tokenFor(bob))

	// Alice sends over HTTP, naming her realtime session.
	data, err := json.Marshal(map[string]any{
		"senderId": alice.ID, "recipientId": bob.ID, "text": "ping", "clientToken": "tok-ws",
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/messages", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(alice))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", aliceSession)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Bob's session receives the message frame.
	bobConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame realtime.Frame
	require.NoError(t, bobConn.ReadJSON(&frame))
	require.Equal(t, realtime.FrameMessage, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "ping", frame.Message.Text)
	assert.Equal(t, "tok-ws", frame.Message.ClientToken)
	assert.Equal(t, "Alice", frame.Message.SenderName)

	// Alice's originating session hears nothing.
	aliceConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var echo realtime.Frame
	err = aliceConn.ReadJSON(&echo)
	assert.Error(t, err, "origin session must not receive its own broadcast")
}

func TestWebsocket_RejectsBadToken(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
