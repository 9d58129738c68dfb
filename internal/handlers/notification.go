package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/logger"
	"github.com/teamforge/teamforge/pkg/response"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	stream              *services.NotificationStream
}

func NewNotificationHandler(notificationService *services.NotificationService, stream *services.NotificationStream) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		stream:              stream,
	}
}

// List returns the current user's notifications
// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	var req services.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	resp, err := h.notificationService.ListForUser(userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// MarkRead flags one notification as read
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.notificationService.MarkRead(userID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "marked as read"})
}

// MarkAllRead flags every unread notification as read
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	updated, err := h.notificationService.MarkAllRead(userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"updated": updated})
}

// UnreadCount returns the unread notification count
// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := middleware.GetUserID(c)
	count, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"unread": count})
}

// Stream pushes the user's notifications over Server-Sent Events. Runs after
// AuthRequired, which also accepts the token query parameter because
// EventSource cannot set headers.
// GET /api/events/notifications
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := middleware.GetUserID(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID, events, cancel := h.stream.Subscribe(userID)
	defer cancel()

	logger.Info().Str("client_id", clientID).Uint("user_id", userID).Msg("SSE client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
