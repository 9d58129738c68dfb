package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/services"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	stream *services.NotificationStream
}

func NewHealthHandler(stream *services.NotificationStream) *HealthHandler {
	return &HealthHandler{stream: stream}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Queue mode
	queue := services.GetNotifyQueue()
	queueMode := "sync"
	if queue != nil && queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// Open task count
	var openTasks int64
	models.GetDB().Model(&models.Task{}).
		Where("status IN ?", []string{models.TaskStatusTodo, models.TaskStatusInProgress}).
		Count(&openTasks)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "teamforge",
		"components": gin.H{
			"database":   dbStatus,
			"queue_mode": queueMode,
			"open_tasks": openTasks,
		},
	})
}
