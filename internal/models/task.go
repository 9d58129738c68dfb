package models

import (
	"time"

	"gorm.io/gorm"
)

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusComplete   = "complete"
)

// Task belongs to exactly one team for its whole lifetime. The assignee, when
// set, must hold a membership in that team and must differ from the creator.
type Task struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	TeamID     uint           `gorm:"index;not null" json:"team_id"`
	Team       *Team          `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	CreatedBy  uint           `gorm:"not null" json:"created_by"`
	AssignedTo *uint          `gorm:"index" json:"assigned_to"`
	Assignee   *User          `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	Status     string         `gorm:"size:20;default:todo" json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Task) TableName() string { return "tasks" }

// ValidTaskStatus reports whether status is one of the closed status set.
func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusComplete:
		return true
	}
	return false
}
