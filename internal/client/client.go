// ABOUTME: Go client for the subletify messaging API
// ABOUTME: HTTP calls plus the realtime websocket channel

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/subletify/subletify/internal/conversation"
	"github.com/subletify/subletify/internal/realtime"
	"github.com/subletify/subletify/internal/store"
)

// helloTimeout bounds the wait for the server's hello frame in Connect.
const helloTimeout = 10 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a subletify server. It satisfies session.Backend, so a
// conversation session can run against a remote server the same way it
// runs against an in-process service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger

	mu        sync.Mutex
	sessionID string
	ws        *websocket.Conn
}

// New creates a client for the server at baseURL authenticating with the
// given bearer token.
func New(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "client"),
	}
}

// Login authenticates with email and password and returns a client holding
// the minted token.
func Login(ctx context.Context, baseURL, email, password string, logger *slog.Logger) (*Client, error) {
	c := New(baseURL, "", logger)

	var resp struct {
		Token string `json:"token"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/login",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	c.token = resp.Token
	return c, nil
}

// SendMessage posts one message. When the client has a live realtime
// session, its id rides along so the broadcast skips echoing back here.
func (c *Client) SendMessage(ctx context.Context, req *conversation.SendRequest) (*store.Message, error) {
	body := map[string]any{
		"senderId":    req.SenderID,
		"recipientId": req.RecipientID,
		"text":        req.Text,
	}
	if req.ClientToken != "" {
		body["clientToken"] = req.ClientToken
	}

	var event realtime.Event
	if err := c.doJSON(ctx, http.MethodPost, "/api/messages", body, &event); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return event.Message(), nil
}

// History fetches the full exchange with partnerID. The server derives the
// caller from the token, so selfID is unused here.
func (c *Client) History(ctx context.Context, _ int64, partnerID int64) (*conversation.History, error) {
	var resp struct {
		HasMessages   bool              `json:"hasMessages"`
		RecipientName string            `json:"recipientName"`
		Messages      []*realtime.Event `json:"messages"`
	}
	path := fmt.Sprintf("/api/messages?recipientId=%d", partnerID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	hist := &conversation.History{
		HasMessages: resp.HasMessages,
		PartnerName: resp.RecipientName,
	}
	for _, e := range resp.Messages {
		hist.Messages = append(hist.Messages, e.Message())
	}
	// The populated case carries the name on the messages instead.
	if hist.HasMessages && len(hist.Messages) > 0 && hist.PartnerName == "" {
		m := hist.Messages[len(hist.Messages)-1]
		if m.SenderID == partnerID {
			hist.PartnerName = m.SenderName
		} else {
			hist.PartnerName = m.RecipientName
		}
	}
	return hist, nil
}

// Inbox fetches the caller's conversations grouped by partner.
func (c *Client) Inbox(ctx context.Context) ([]*conversation.Conversation, error) {
	var resp []struct {
		PartnerID   int64             `json:"partnerId"`
		PartnerName string            `json:"partnerName"`
		Messages    []*realtime.Event `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages/conversations", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching inbox: %w", err)
	}

	convs := make([]*conversation.Conversation, len(resp))
	for i, entry := range resp {
		conv := &conversation.Conversation{
			PartnerID:   entry.PartnerID,
			PartnerName: entry.PartnerName,
		}
		for _, e := range entry.Messages {
			conv.Messages = append(conv.Messages, e.Message())
		}
		convs[i] = conv
	}
	return convs, nil
}

// Connect opens the realtime channel and returns broadcast messages on the
// returned channel, which closes when the connection drops or ctx ends.
// The server's hello frame is consumed before Connect returns, so
// SessionID is valid immediately afterwards.
func (c *Client) Connect(ctx context.Context) (<-chan *store.Message, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws?token=" + c.token

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing realtime channel: %w", err)
	}

	// Guard the hello read too: ctx cancellation must unblock it, and a
	// server that upgrades but never writes must not stall Connect forever.
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	ws.SetReadDeadline(time.Now().Add(helloTimeout))

	var hello realtime.Frame
	if err := ws.ReadJSON(&hello); err != nil {
		stop()
		ws.Close()
		return nil, fmt.Errorf("reading hello frame: %w", err)
	}
	if hello.Type != realtime.FrameHello {
		stop()
		ws.Close()
		return nil, fmt.Errorf("expected hello frame, got %q", hello.Type)
	}
	ws.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.sessionID = hello.SessionID
	c.ws = ws
	c.mu.Unlock()

	events := make(chan *store.Message, 16)
	go c.readLoop(ctx, ws, stop, events)
	return events, nil
}

func (c *Client) readLoop(ctx context.Context, ws *websocket.Conn, stop func() bool, events chan<- *store.Message) {
	defer close(events)
	defer ws.Close()
	defer stop()

	for {
		var frame realtime.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("realtime channel closed", "error", err)
			}
			return
		}
		if frame.Type != realtime.FrameMessage || frame.Message == nil {
			continue
		}
		select {
		case events <- frame.Message.Message():
		case <-ctx.Done():
			return
		}
	}
}

// SessionID returns the realtime session id from the server's hello frame,
// or empty when not connected.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Close shuts the realtime channel if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		err := c.ws.Close()
		c.ws = nil
		c.sessionID = ""
		return err
	}
	return nil
}

// doJSON issues one request and decodes the response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if sessionID := c.SessionID(); sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
