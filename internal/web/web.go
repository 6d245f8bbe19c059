// Package web serves the browser chat widget over a websocket. Each connection is one
// conversation; it is greeted on connect and closed once the lead is submitted.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BTreeMap/LeadPipe/internal/conversation"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

const (
	// MessageTypeBot carries assistant text.
	MessageTypeBot = "bot"
	// MessageTypeError reports a condition that ends the connection.
	MessageTypeError = "error"

	writeWait = 10 * time.Second
)

// Client-facing error texts.
const (
	ErrTextMissingUserID = "Missing user_id in query params"
	ErrTextContext       = "Unable to fetch user context. Please try again shortly."
)

// Message is a frame sent to the widget.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// TurnHandler runs conversation turns. conversation.Driver implements it.
type TurnHandler interface {
	Start(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error)
	Handle(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error)
	End(ctx context.Context, sessionID string)
}

// Handler upgrades /ws requests.
type Handler struct {
	turns    TurnHandler
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. The widget is embedded on customer sites, so any origin is accepted.
func NewHandler(turns TurnHandler) *Handler {
	return &Handler{
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs one widget conversation.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Handler.ServeHTTP: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		h.fail(conn, websocket.ClosePolicyViolation, ErrTextMissingUserID)
		return
	}

	ctx := r.Context()
	in := conversation.Inbound{
		SessionID: uuid.NewString(),
		Channel:   models.ChannelWeb,
		UserID:    userID,
	}
	out, err := h.turns.Start(ctx, in)
	if err != nil {
		slog.Error("Handler.ServeHTTP: conversation start failed", "userID", userID, "error", err)
		h.fail(conn, websocket.CloseInternalServerErr, ErrTextContext)
		return
	}
	defer h.turns.End(context.WithoutCancel(ctx), in.SessionID)
	slog.Info("Handler.ServeHTTP: widget connected", "sessionID", in.SessionID, "userID", userID)

	if !h.send(conn, out.Messages) {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Handler.ServeHTTP: connection lost", "sessionID", in.SessionID, "error", err)
			} else {
				slog.Info("Handler.ServeHTTP: widget disconnected", "sessionID", in.SessionID)
			}
			return
		}
		text := UserText(data)
		if text == "" {
			continue
		}
		turn := in
		turn.Text = text
		out, err := h.turns.Handle(ctx, turn)
		if err != nil {
			slog.Error("Handler.ServeHTTP: turn failed", "sessionID", in.SessionID, "error", err)
		}
		if !h.send(conn, out.Messages) {
			return
		}
		if out.Done {
			closeWith(conn, websocket.CloseNormalClosure, "")
			return
		}
	}
}

// UserText extracts the user's text from a widget frame: the content or text field of a JSON
// object, else the raw frame. Keepalive frames yield "".
func UserText(data []byte) string {
	text := string(data)
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err == nil {
		for _, key := range []string{"content", "text"} {
			if s, ok := parsed[key].(string); ok && strings.TrimSpace(s) != "" {
				text = s
				break
			}
		}
	}
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "ping", "pong", "keepalive", "heartbeat":
		return ""
	}
	return text
}

func (h *Handler) send(conn *websocket.Conn, messages []string) bool {
	for _, m := range messages {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(Message{Type: MessageTypeBot, Content: m}); err != nil {
			slog.Warn("Handler.send: write failed", "error", err)
			return false
		}
	}
	return true
}

func (h *Handler) fail(conn *websocket.Conn, code int, text string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(Message{Type: MessageTypeError, Content: text})
	closeWith(conn, code, "")
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
