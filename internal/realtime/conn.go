// ABOUTME: Websocket connection plumbing for the realtime channel
// ABOUTME: Read/write pumps bridging a gorilla websocket to the hub

package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/subletify/subletify/internal/store"
)

const (
	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead. Pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize bounds inbound frames.
	maxFrameSize = 8192
)

// ServeConn attaches a websocket to the hub for the given user and blocks
// until the connection closes. The session joins the user's room, receives
// a hello frame with its session id, then receives one message frame per
// published event. Inbound message frames are transient publishes: they fan
// out to the other participant's sessions without touching the store (the
// client persists via the HTTP API independently).
func ServeConn(ctx context.Context, hub *Hub, ws *websocket.Conn, userID int64, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, sessionID := hub.Subscribe(connCtx, userID)
	logger = logger.With("component", "realtime", "user_id", userID, "session_id", sessionID)

	go writePump(ws, ch, sessionID, logger)
	readPump(ws, hub, userID, sessionID, logger)

	// readPump returned: cancel unsubscribes, which closes ch and stops
	// the write pump.
	cancel()
	ws.Close()
	logger.Debug("connection closed")
}

// writePump writes the hello frame, then forwards hub deliveries and
// keepalive pings until the delivery channel closes.
func writePump(ws *websocket.Conn, ch <-chan *store.Message, sessionID string, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(&Frame{Type: FrameHello, SessionID: sessionID}); err != nil {
		logger.Debug("hello write failed", "error", err)
		return
	}

	for {
		select {
		case msg, ok := <-ch:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := &Frame{Type: FrameMessage, Message: EventFromMessage(msg)}
			if err := ws.WriteJSON(frame); err != nil {
				logger.Debug("frame write failed", "error", err)
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames until the connection errors or closes.
// Connection errors are logged, not retried; the client recovers missed
// events from the store on its next fetch.
func readPump(ws *websocket.Conn, hub *Hub, userID int64, sessionID string, logger *slog.Logger) {
	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("read failed", "error", err)
			}
			return
		}

		if frame.Type != FrameMessage || frame.Message == nil {
			continue
		}

		// A session may only publish as itself
		if frame.Message.SenderID != userID {
			logger.Debug("dropped spoofed publish",
				"claimed_sender", frame.Message.SenderID)
			continue
		}

		hub.Publish(frame.Message.Message(), sessionID)
	}
}
