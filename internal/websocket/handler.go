package websocket

import (
	"context"
	"net/http"

	"designlens/internal/events"
	"designlens/internal/middleware"
	"designlens/internal/transport/httpdto"
	"designlens/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SessionOwner confirms that a session belongs to an account.
type SessionOwner interface {
	Owns(ctx context.Context, accountID, sessionID string) bool
}

type Handler struct {
	hub      *Hub
	sessions SessionOwner
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHandler(hub *Hub, sessions SessionOwner, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Handler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Connect streams the account's notifications and, with ?session_id=, those of one session.
// It runs behind middleware.AccountMiddleware.
func (h *Handler) Connect(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	sessionID := c.Query("session_id")
	if sessionID != "" && !h.sessions.Owns(c.Request.Context(), accountID, sessionID) {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("session not found", "NOT_FOUND"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, accountID)
	log := h.log.WithContext(c.Request.Context()).With(zap.String("client_id", client.ID), zap.String("session_id", sessionID))
	channels := []string{events.AccountChannel(accountID)}
	if sessionID != "" {
		channels = append(channels, events.SessionChannel(sessionID))
	}
	h.hub.Register(client, channels...)
	log.Info("websocket connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.WriteLoop(ctx)

	client.ReadLoop()
	h.hub.Unregister(client)
	log.Info("websocket disconnected")
}
