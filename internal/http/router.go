package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fyp-inbox/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	chatH *ChatHandler,
	notifH *NotificationHandler,
	wsH *WSHandler,
	health gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	if health != nil {
		r.GET("/healthz", jsonContentTypeMiddleware(), health)
	}
	if wsH != nil {
		// Sin jsonContentTypeMiddleware: el handshake responde 101.
		r.GET("/ws", JWTAuthMiddleware(jwtSvc, true), wsH.Serve)
	}

	api := r.Group("", jsonContentTypeMiddleware(), JWTAuthMiddleware(jwtSvc, false))

	chats := api.Group("/chats")
	chats.POST("", chatH.StartOrContinue)
	chats.GET("", chatH.ListThreads)
	chats.GET("/unread", chatH.TotalUnread)
	chats.GET("/:id", chatH.GetThread)
	chats.GET("/:id/messages", chatH.FetchMessages)
	chats.POST("/:id/messages", chatH.PostMessage)
	chats.POST("/:id/seen", chatH.MarkSeen)
	chats.GET("/:id/unread", chatH.UnreadCount)

	notifications := api.Group("/notifications")
	notifications.GET("", notifH.List)
	notifications.GET("/unread", notifH.UnreadCount)
	notifications.POST("/read-all", notifH.MarkAllRead)
	notifications.POST("/:id/read", notifH.MarkRead)
	notifications.DELETE("/:id", notifH.Delete)

	emit := notifications.Group("", notifH.RequireCoordinator())
	emit.POST("", notifH.Notify)
	emit.POST("/events/announcement", notifH.Announcement)
	emit.POST("/events/grade", notifH.GradePublished)
	emit.POST("/events/meeting", notifH.MeetingScheduled)
	emit.POST("/events/role", notifH.RoleChanged)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
