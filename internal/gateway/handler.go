package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/duynhne/chat-service/internal/presence"
	pkgzerolog "github.com/duynhne/chat-service/pkg/logger/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// UserIDParam is accepted both as query parameter and as header.
const UserIDParam = "userId"

// EventHandler consumes session lifecycle events.
type EventHandler interface {
	Handle(ctx context.Context, ev presence.Event) error
}

// Handler serves the websocket endpoint.
type Handler struct {
	hub      *Hub
	events   EventHandler
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler that pushes through hub and reports session events to events.
func NewHandler(hub *Hub, events EventHandler) *Handler {
	return &Handler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func parseUserID(c *gin.Context) (int64, error) {
	raw := c.Query(UserIDParam)
	if raw == "" {
		raw = c.GetHeader(UserIDParam)
	}
	if raw == "" {
		return 0, errors.New("userId is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("userId must be a positive integer")
	}
	return id, nil
}

// ServeWS upgrades the request and runs the session until either side closes.
func (h *Handler) ServeWS(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		pkgzerolog.FromContext(c.Request.Context()).Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString())
	ctx := pkgzerolog.WithFields(c.Request.Context(), map[string]string{
		"session_id": client.sessionID,
		"user_id":    strconv.FormatInt(userID, 10),
	})
	// Lifecycle events must complete even after the request context ends.
	ctx = context.WithoutCancel(ctx)
	logger := pkgzerolog.FromContext(ctx)

	// A failed connect leaves nothing registered; the client reconnects.
	if err := h.events.Handle(ctx, presence.Event{Kind: presence.EventConnect, SessionID: client.sessionID, UserID: userID}); err != nil {
		logger.Error().Err(err).Msg("Connect failed")
		closeWith(conn, websocket.CloseInternalServerErr, "presence unavailable")
		return
	}

	h.hub.register(client)
	logger.Info().Msg("Websocket session opened")

	go h.writePump(conn, client, logger)
	h.readPump(ctx, conn, client, logger)

	h.hub.unregister(client)
	if err := h.events.Handle(ctx, presence.Event{Kind: presence.EventDisconnect, SessionID: client.sessionID}); err != nil {
		logger.Error().Err(err).Msg("Disconnect failed")
	}
	logger.Info().Msg("Websocket session closed")
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = conn.Close()
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *Client, logger *zerolog.Logger) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("Websocket closed unexpectedly")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Destination == "" {
			h.reject(client, "frame must be JSON with a destination")
			continue
		}

		var kind presence.EventKind
		switch frame.Type {
		case FrameSubscribe:
			client.subscribe(frame.Destination)
			kind = presence.EventSubscribe
		case FrameUnsubscribe:
			client.unsubscribe(frame.Destination)
			kind = presence.EventUnsubscribe
		default:
			h.reject(client, "unsupported frame type "+strconv.Quote(frame.Type))
			continue
		}

		if err := h.events.Handle(ctx, presence.Event{Kind: kind, SessionID: client.sessionID, Destination: frame.Destination}); err != nil {
			logger.Warn().Err(err).Str("destination", frame.Destination).Msg("Subscription event failed")
		}
	}
}

func (h *Handler) reject(client *Client, reason string) {
	select {
	case client.send <- Frame{Type: FrameError, Body: reason}:
	default:
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *Client, logger *zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
