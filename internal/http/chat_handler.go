//go:generate go run go.uber.org/mock/mockgen -source=chat_handler.go -destination=../mocks/mock_thread_api.go -package=mocks

package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/service"
)

// ThreadAPI es lo que ChatHandler necesita de service.ThreadService.
type ThreadAPI interface {
	StartOrContinue(ctx context.Context, initiator string, recipients []string, chatID, body string) (service.StartResult, error)
	Append(ctx context.Context, chatID, sender, body string) (domain.Message, error)
	FetchMessages(ctx context.Context, chatID, requester string, limit int) ([]domain.Message, error)
	MarkSeen(ctx context.Context, chatID, userID string, messageIDs []string) (int, error)
	ListThreads(ctx context.Context, userID string) ([]domain.ThreadSummary, error)
	GetThread(ctx context.Context, chatID, userID string) (domain.ThreadSummary, error)
	UnreadCount(ctx context.Context, chatID, userID string) (int, error)
	TotalUnread(ctx context.Context, userID string) (int, error)
}

// ChatHandler expone los hilos de mensajes directos.
type ChatHandler struct {
	logger  *zap.Logger
	threads ThreadAPI
}

func NewChatHandler(logger *zap.Logger, threads ThreadAPI) *ChatHandler {
	return &ChatHandler{logger: logger, threads: threads}
}

// StartOrContinue maneja POST /chats.
func (h *ChatHandler) StartOrContinue(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		ChatID     string   `json:"chat_id"`
		Recipients []string `json:"recipients"`
		Body       string   `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid start chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.threads.StartOrContinue(c.Request.Context(), userID, req.Recipients, req.ChatID, req.Body)
	if err != nil {
		respondError(c, h.logger, "start chat", err)
		return
	}
	status := http.StatusOK
	if res.IsNewChat {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// ListThreads maneja GET /chats.
func (h *ChatHandler) ListThreads(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	threads, err := h.threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "list threads", err)
		return
	}
	if threads == nil {
		threads = []domain.ThreadSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// TotalUnread maneja GET /chats/unread.
func (h *ChatHandler) TotalUnread(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	n, err := h.threads.TotalUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "total unread", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

// GetThread maneja GET /chats/:id.
func (h *ChatHandler) GetThread(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	summary, err := h.threads.GetThread(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "get thread", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// FetchMessages maneja GET /chats/:id/messages?limit=N.
func (h *ChatHandler) FetchMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	msgs, err := h.threads.FetchMessages(c.Request.Context(), c.Param("id"), userID, limit)
	if err != nil {
		respondError(c, h.logger, "fetch messages", err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage maneja POST /chats/:id/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.threads.Append(c.Request.Context(), c.Param("id"), userID, req.Body)
	if err != nil {
		respondError(c, h.logger, "post message", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkSeen maneja POST /chats/:id/seen. Sin message_ids marca todo el hilo.
func (h *ChatHandler) MarkSeen(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid mark seen request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	n, err := h.threads.MarkSeen(c.Request.Context(), c.Param("id"), userID, req.MessageIDs)
	if err != nil {
		respondError(c, h.logger, "mark seen", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// UnreadCount maneja GET /chats/:id/unread.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	n, err := h.threads.UnreadCount(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "unread count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}
