//go:generate go run go.uber.org/mock/mockgen -source=notification_handler.go -destination=../mocks/mock_notification_api.go -package=mocks

package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/service"
)

// NotificationAPI es lo que NotificationHandler necesita de service.NotificationService.
type NotificationAPI interface {
	Notify(ctx context.Context, evt service.Event) (service.FanoutResult, error)
	List(ctx context.Context, userID string, onlyUnread bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// NotificationHandler expone el inbox y la emision de avisos.
type NotificationHandler struct {
	logger        *zap.Logger
	notifications NotificationAPI
	directory     service.Directory
}

func NewNotificationHandler(logger *zap.Logger, notifications NotificationAPI, directory service.Directory) *NotificationHandler {
	return &NotificationHandler{logger: logger, notifications: notifications, directory: directory}
}

// RequireCoordinator deja pasar solo a usuarios con rol coordinador.
func (h *NotificationHandler) RequireCoordinator() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		user, err := h.directory.ResolveUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, h.logger, "resolve caller", err)
			c.Abort()
			return
		}
		if !user.Roles.Coordinator {
			c.JSON(http.StatusForbidden, gin.H{"error": "coordinator role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Notify maneja POST /notifications.
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req struct {
		Audience domain.AudienceSpec `json:"audience"`
		Template string              `json:"template" binding:"required"`
		Params   map[string]any      `json:"params"`
		Link     string              `json:"link"`
		DedupKey string              `json:"dedup_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid notify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	audience, err := req.Audience.ToAudience()
	if err != nil {
		respondError(c, h.logger, "notify", err)
		return
	}
	h.fanout(c, service.Event{
		Audience: audience,
		Template: req.Template,
		Params:   req.Params,
		Link:     req.Link,
		DedupKey: req.DedupKey,
	})
}

// Announcement maneja POST /notifications/events/announcement.
func (h *NotificationHandler) Announcement(c *gin.Context) {
	var req struct {
		AnnouncementID string           `json:"announcement_id" binding:"required"`
		Title          string           `json:"title" binding:"required"`
		Roles          domain.RoleFlags `json:"roles"`
		GroupID        string           `json:"group_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid announcement event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.fanout(c, service.AnnouncementEvent(req.AnnouncementID, req.Title, req.Roles, req.GroupID))
}

// GradePublished maneja POST /notifications/events/grade.
func (h *NotificationHandler) GradePublished(c *gin.Context) {
	var req struct {
		ProjectID    string   `json:"project_id" binding:"required"`
		ProjectTitle string   `json:"project_title" binding:"required"`
		StudentIDs   []string `json:"student_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid grade event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.fanout(c, service.GradePublishedEvent(req.ProjectID, req.ProjectTitle, req.StudentIDs))
}

// MeetingScheduled maneja POST /notifications/events/meeting.
func (h *NotificationHandler) MeetingScheduled(c *gin.Context) {
	var req struct {
		MeetingID string    `json:"meeting_id" binding:"required"`
		GroupID   string    `json:"group_id" binding:"required"`
		At        time.Time `json:"at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid meeting event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.fanout(c, service.MeetingScheduledEvent(req.MeetingID, req.GroupID, req.At))
}

// RoleChanged maneja POST /notifications/events/role.
func (h *NotificationHandler) RoleChanged(c *gin.Context) {
	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		Role    string `json:"role" binding:"required"`
		Granted bool   `json:"granted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid role event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.fanout(c, service.RoleChangedEvent(req.UserID, req.Role, req.Granted))
}

func (h *NotificationHandler) fanout(c *gin.Context, evt service.Event) {
	res, err := h.notifications.Notify(c.Request.Context(), evt)
	if err != nil {
		if service.IsFanoutUnavailable(err) {
			err = domain.ErrStoreUnavailable
		}
		respondError(c, h.logger, "notify", err)
		return
	}
	failed := res.FailedRecipients()
	if failed == nil {
		failed = []string{}
	}
	c.JSON(http.StatusCreated, gin.H{
		"created": res.Created,
		"skipped": res.Skipped,
		"failed":  failed,
	})
}

// List maneja GET /notifications?unread=true.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	onlyUnread := false
	if raw := c.Query("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unread filter"})
			return
		}
		onlyUnread = v
	}
	items, err := h.notifications.List(c.Request.Context(), userID, onlyUnread)
	if err != nil {
		respondError(c, h.logger, "list notifications", err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// UnreadCount maneja GET /notifications/unread.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "notification unread count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

// MarkRead maneja POST /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, h.logger, "mark notification read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead maneja POST /notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "mark all read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// Delete maneja DELETE /notifications/:id.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, h.logger, "delete notification", err)
		return
	}
	c.Status(http.StatusNoContent)
}
