package services

import (
	"errors"
	"fmt"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

type CreateTaskRequest struct {
	Title      string `json:"title" binding:"required,max=255"`
	TeamID     uint   `json:"team_id" binding:"required"`
	AssignedTo *uint  `json:"assigned_to"`
}

type UpdateTaskRequest struct {
	Title      string `json:"title"`
	AssignedTo *uint  `json:"assigned_to"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type TaskListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	TeamID   uint   `form:"team_id"`
}

type TaskListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Task `json:"items"`
}

// Create opens a task on a team's board. The actor must be able to assign
// work in the team, and the assignee, when set, must already be a direct
// member of that team and must not be the actor themselves.
func (s *TaskService) Create(actorID uint, req *CreateTaskRequest) (*models.Task, error) {
	task := models.Task{
		Title:      req.Title,
		TeamID:     req.TeamID,
		CreatedBy:  actorID,
		AssignedTo: req.AssignedTo,
		Status:     models.TaskStatusTodo,
	}

	var teamName string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, req.TeamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("team not found")
			}
			return err
		}
		teamName = team.Name

		allowed, err := NewAuthorizer(tx).CanAssignTask(actorID, req.TeamID)
		if err != nil {
			return err
		}
		if !allowed {
			return response.NewForbidden("must be an admin of this team or an ancestor to create tasks")
		}

		if req.AssignedTo != nil {
			if err := validateAssignee(tx, actorID, task.CreatedBy, req.TeamID, *req.AssignedTo); err != nil {
				return err
			}
		}

		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}

	if task.AssignedTo != nil {
		dispatchNotification(*task.AssignedTo,
			fmt.Sprintf("New task in team %s: %s", teamName, task.Title))
	}
	return &task, nil
}

// validateAssignee enforces that the assignee holds a direct membership in
// the task's team and is neither the actor issuing the assignment nor the
// task's creator.
func validateAssignee(tx *gorm.DB, actorID, creatorID, teamID, assigneeID uint) error {
	if assigneeID == actorID {
		return response.NewBadRequest("cannot assign a task to yourself")
	}
	if assigneeID == creatorID {
		return response.NewBadRequest("cannot assign a task to its creator")
	}

	var count int64
	err := tx.Model(&models.TeamMembership{}).
		Where("team_id = ? AND user_id = ?", teamID, assigneeID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return response.NewBadRequest("assignee is not a member of this team")
	}
	return nil
}

// GetByID returns a task the user is allowed to see.
func (s *TaskService) GetByID(actorID, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.Preload("Team").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("task not found")
		}
		return nil, err
	}

	allowed, err := NewAuthorizer(s.db).CanViewTask(actorID, &task)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, response.NewForbidden("no access to this task")
	}
	return &task, nil
}

// Update changes a task's title or assignee. The team binding is fixed at
// creation; moving a task between boards is deliberately not supported.
func (s *TaskService) Update(actorID, taskID uint, req *UpdateTaskRequest) (*models.Task, error) {
	var task models.Task

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("task not found")
			}
			return err
		}

		allowed, err := NewAuthorizer(tx).CanAssignTask(actorID, task.TeamID)
		if err != nil {
			return err
		}
		if !allowed {
			return response.NewForbidden("must be an admin of this team or an ancestor to edit tasks")
		}

		updates := make(map[string]interface{})
		if req.Title != "" && req.Title != task.Title {
			updates["title"] = req.Title
		}
		if req.AssignedTo != nil {
			if err := validateAssignee(tx, actorID, task.CreatedBy, task.TeamID, *req.AssignedTo); err != nil {
				return err
			}
			updates["assigned_to"] = *req.AssignedTo
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&task).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if req.AssignedTo != nil {
		dispatchNotification(*req.AssignedTo,
			fmt.Sprintf("Task assigned to you: %s", task.Title))
	}
	return &task, nil
}

// UpdateStatus moves a task between statuses. Allowed for the assignee, a
// transitive admin of the task's team, or the scrum master.
func (s *TaskService) UpdateStatus(actorID, taskID uint, status string) (*models.Task, error) {
	if !models.ValidTaskStatus(status) {
		return nil, response.NewBadRequest(fmt.Sprintf("invalid status: %s", status))
	}

	var task models.Task
	var oldStatus string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("task not found")
			}
			return err
		}

		allowed, err := NewAuthorizer(tx).CanMutateTaskStatus(actorID, &task)
		if err != nil {
			return err
		}
		if !allowed {
			return response.NewForbidden("only the assignee or a team admin can change task status")
		}

		oldStatus = task.Status
		if oldStatus == status {
			return nil
		}
		return tx.Model(&task).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}

	if oldStatus != status && task.CreatedBy != actorID {
		dispatchNotification(task.CreatedBy,
			fmt.Sprintf("Task %q moved from %s to %s.", task.Title, oldStatus, status))
	}
	task.Status = status
	return &task, nil
}

// Delete removes a task from the board.
func (s *TaskService) Delete(actorID, taskID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("task not found")
			}
			return err
		}

		allowed, err := NewAuthorizer(tx).CanAssignTask(actorID, task.TeamID)
		if err != nil {
			return err
		}
		if !allowed {
			return response.NewForbidden("must be an admin of this team or an ancestor to delete tasks")
		}

		return tx.Delete(&task).Error
	})
}

// ListAssigned returns tasks assigned to the user, optionally filtered by
// status. Tasks created by the user but assigned elsewhere do not appear.
func (s *TaskService) ListAssigned(userID uint, req *TaskListRequest) (*TaskListResponse, error) {
	query := s.db.Model(&models.Task{}).Where("assigned_to = ?", userID)
	return s.page(query, req)
}

// ListVisible returns every task the user may see: all tasks for the scrum
// master, otherwise tasks in teams the user belongs to or transitively
// administers, plus tasks assigned to the user directly.
func (s *TaskService) ListVisible(userID uint, req *TaskListRequest) (*TaskListResponse, error) {
	authz := NewAuthorizer(s.db)

	master, err := authz.IsScrumMaster(userID)
	if err != nil {
		return nil, err
	}
	if master {
		return s.page(s.db.Model(&models.Task{}), req)
	}

	var memberships []models.TeamMembership
	if err := s.db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	var teamIDs []uint
	for _, m := range memberships {
		if !seen[m.TeamID] {
			seen[m.TeamID] = true
			teamIDs = append(teamIDs, m.TeamID)
		}
	}

	adminSubtree, err := authz.AdminSubtreeTeamIDs(userID)
	if err != nil {
		return nil, err
	}
	for _, id := range adminSubtree {
		if !seen[id] {
			seen[id] = true
			teamIDs = append(teamIDs, id)
		}
	}

	query := s.db.Model(&models.Task{})
	if len(teamIDs) > 0 {
		query = query.Where("team_id IN ? OR assigned_to = ?", teamIDs, userID)
	} else {
		query = query.Where("assigned_to = ?", userID)
	}
	return s.page(query, req)
}

// ListByTeam returns a team's board for users allowed to see it.
func (s *TaskService) ListByTeam(actorID, teamID uint, req *TaskListRequest) (*TaskListResponse, error) {
	var team models.Team
	if err := s.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("team not found")
		}
		return nil, err
	}

	probe := models.Task{TeamID: teamID}
	allowed, err := NewAuthorizer(s.db).CanViewTask(actorID, &probe)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, response.NewForbidden("no access to this team's board")
	}

	query := s.db.Model(&models.Task{}).Where("team_id = ?", teamID)
	return s.page(query, req)
}

func (s *TaskService) page(query *gorm.DB, req *TaskListRequest) (*TaskListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.Status != "" {
		if !models.ValidTaskStatus(req.Status) {
			return nil, response.NewBadRequest(fmt.Sprintf("invalid status: %s", req.Status))
		}
		query = query.Where("status = ?", req.Status)
	}
	if req.TeamID != 0 {
		query = query.Where("team_id = ?", req.TeamID)
	}

	var total int64
	query.Count(&total)

	var tasks []models.Task
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Team").Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	return &TaskListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    tasks,
	}, nil
}
