package models

import "time"

// Team-scoped roles.
const (
	TeamRoleAdmin  = "admin"
	TeamRoleMember = "member"
)

// TeamMembership grants a user a role within a specific team. A (team, user)
// pair has at most one row, backed by the unique index; rows are hard-deleted
// so the index genuinely rejects duplicates.
type TeamMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"uniqueIndex:idx_team_user;not null" json:"team_id"`
	Team      *Team     `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	UserID    uint      `gorm:"uniqueIndex:idx_team_user;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      string    `gorm:"size:20;not null" json:"role"` // admin, member
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TeamMembership) TableName() string { return "team_memberships" }

// ValidTeamRole reports whether role is one of the closed team-role set.
func ValidTeamRole(role string) bool {
	return role == TeamRoleAdmin || role == TeamRoleMember
}
