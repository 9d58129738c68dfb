package models

import (
	"time"

	"gorm.io/gorm"
)

// Global roles. Only ScrumMaster carries organization-wide authority; the
// admin/member values are legacy display flags and never drive authorization
// decisions (team-scoped authority lives in TeamMembership).
const (
	GlobalRoleNone        = ""
	GlobalRoleScrumMaster = "scrum_master"
	GlobalRoleAdmin       = "admin"
	GlobalRoleMember      = "member"
)

// User represents a system user.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string         `gorm:"size:255" json:"-"` // Hashed password, empty for LDAP users
	Nickname  string         `gorm:"size:100" json:"nickname"`
	Role      string         `gorm:"size:50;default:''" json:"role"`         // scrum_master, admin, member or empty
	AuthType  string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// IsScrumMaster reports whether the user holds the unique super-role.
func (u *User) IsScrumMaster() bool {
	return u.Role == GlobalRoleScrumMaster
}
