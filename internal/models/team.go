package models

import (
	"time"

	"gorm.io/gorm"
)

// Team is a node in the team forest. ParentID is nil for root teams; the
// acyclic invariant is enforced at write time (a team can never be reparented
// under its own subtree).
type Team struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;size:255;not null" json:"name"`
	ParentID  *uint          `gorm:"index" json:"parent_id"`
	Parent    *Team          `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	CreatedBy uint           `gorm:"not null" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Team) TableName() string { return "teams" }

// IsRoot reports whether the team has no parent.
func (t *Team) IsRoot() bool {
	return t.ParentID == nil
}
