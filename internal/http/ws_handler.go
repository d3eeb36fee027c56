package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fyp-inbox/internal/realtime"
)

// WSHandler conecta clientes websocket al Hub. Tras el handshake el cliente
// envia {"action":"join","room":"<chat id>"} para suscribirse.
type WSHandler struct {
	logger   *zap.Logger
	hub      *realtime.Hub
	auth     realtime.RoomAuthorizer
	upgrader websocket.Upgrader
	// baseCtx vive lo que vive el servidor; el contexto del request termina con el upgrade.
	baseCtx context.Context
}

func NewWSHandler(
	baseCtx context.Context,
	logger *zap.Logger,
	hub *realtime.Hub,
	auth realtime.RoomAuthorizer,
	allowedOrigins []string,
) *WSHandler {
	h := &WSHandler{
		logger:  logger,
		hub:     hub,
		auth:    auth,
		baseCtx: baseCtx,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Serve maneja GET /ws.
func (h *WSHandler) Serve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade ya respondio al cliente.
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, userID)
	h.hub.Register(client)
	h.logger.Info("websocket connected", zap.String("user_id", userID))

	go client.WritePump()
	go client.ReadPump(h.baseCtx, h.auth, h.logger)
}

// originChecker acepta el mismo host, o cualquier origen de la lista ("*" acepta todos).
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
