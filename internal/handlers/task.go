package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{
		taskService: services.NewTaskService(db),
	}
}

// Create opens a task on a team's board
// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	task, err := h.taskService.Create(actorID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, task)
}

// GetByID returns a single task
// GET /api/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	actorID := middleware.GetUserID(c)
	task, err := h.taskService.GetByID(actorID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Update changes a task's title or assignee
// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	task, err := h.taskService.Update(actorID, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// UpdateStatus moves a task between statuses
// PATCH /api/tasks/:id/status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	task, err := h.taskService.UpdateStatus(actorID, id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Delete removes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	actorID := middleware.GetUserID(c)
	if err := h.taskService.Delete(actorID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "task deleted successfully"})
}

// ListAssigned returns tasks assigned to the current user
// GET /api/tasks/assigned
func (h *TaskHandler) ListAssigned(c *gin.Context) {
	var req services.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	resp, err := h.taskService.ListAssigned(userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// ListVisible returns every task the current user may see
// GET /api/tasks/visible
func (h *TaskHandler) ListVisible(c *gin.Context) {
	var req services.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	resp, err := h.taskService.ListVisible(userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// ListByTeam returns a team's board
// GET /api/teams/:id/tasks
func (h *TaskHandler) ListByTeam(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	resp, err := h.taskService.ListByTeam(actorID, teamID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}
