package services

import (
	"errors"
	"fmt"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

type MembershipService struct {
	db *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

type AddMemberRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type MemberInfo struct {
	MembershipID uint   `json:"membership_id"`
	UserID       uint   `json:"user_id"`
	Username     string `json:"username"`
	Nickname     string `json:"nickname"`
	Email        string `json:"email"`
	Role         string `json:"role"`
}

// AddMember enrolls a user into a team with the given role. The permission
// check runs inside the write transaction so a concurrent demotion of the
// actor cannot slip through.
func (s *MembershipService) AddMember(actorID, teamID uint, req *AddMemberRequest) (*models.TeamMembership, error) {
	if !models.ValidTeamRole(req.Role) {
		return nil, response.NewBadRequest(fmt.Sprintf("invalid role: %s", req.Role))
	}

	membership := models.TeamMembership{
		TeamID: teamID,
		UserID: req.UserID,
		Role:   req.Role,
	}

	var teamName string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("team not found")
			}
			return err
		}
		teamName = team.Name

		var user models.User
		if err := tx.First(&user, req.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("user not found")
			}
			return err
		}

		allowed, err := NewAuthorizer(tx).CanManageMembership(actorID, teamID)
		if err != nil {
			return err
		}
		if !allowed {
			return response.NewForbidden("must be an admin of this team or an ancestor to manage members")
		}

		var count int64
		if err := tx.Model(&models.TeamMembership{}).
			Where("team_id = ? AND user_id = ?", teamID, req.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return response.NewConflict("user is already a member of this team")
		}

		if err := tx.Create(&membership).Error; err != nil {
			return response.NewConflict("user is already a member of this team")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispatchNotification(req.UserID, fmt.Sprintf("You were added to team %s as %s.", teamName, req.Role))
	return &membership, nil
}

// ChangeRole reassigns an existing member's role within a team. Reserved for
// the scrum master; admin status in the team is not enough.
func (s *MembershipService) ChangeRole(actorID, teamID, userID uint, role string) (*models.TeamMembership, error) {
	if !models.ValidTeamRole(role) {
		return nil, response.NewBadRequest(fmt.Sprintf("invalid role: %s", role))
	}

	var membership models.TeamMembership
	var teamName string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		allowed, err := NewAuthorizer(tx).CanChangeRole(actorID)
		if err != nil {
			return err
		}
		if !allowed {
			return response.NewForbidden("only the scrum master can change member roles")
		}

		var team models.Team
		if err := tx.First(&team, teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("team not found")
			}
			return err
		}
		teamName = team.Name

		if err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).
			First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("user is not a member of this team")
			}
			return err
		}

		if membership.Role == role {
			return response.NewConflict("member already holds this role")
		}

		return tx.Model(&membership).Update("role", role).Error
	})
	if err != nil {
		return nil, err
	}

	dispatchNotification(userID, fmt.Sprintf("Your role in team %s is now %s.", teamName, role))
	return &membership, nil
}

// RemoveMember drops a user's membership in a team.
func (s *MembershipService) RemoveMember(actorID, teamID, userID uint) error {
	var teamName string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("team not found")
			}
			return err
		}
		teamName = team.Name

		allowed, err := NewAuthorizer(tx).CanManageMembership(actorID, teamID)
		if err != nil {
			return err
		}
		if !allowed {
			return response.NewForbidden("must be an admin of this team or an ancestor to manage members")
		}

		result := tx.Where("team_id = ? AND user_id = ?", teamID, userID).
			Delete(&models.TeamMembership{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return response.NewNotFound("user is not a member of this team")
		}
		return nil
	})
	if err != nil {
		return err
	}

	dispatchNotification(userID, fmt.Sprintf("You were removed from team %s.", teamName))
	return nil
}

// ListMembers returns the members of a team joined with their user profile.
func (s *MembershipService) ListMembers(teamID uint) ([]MemberInfo, error) {
	var team models.Team
	if err := s.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("team not found")
		}
		return nil, err
	}

	var members []MemberInfo
	err := s.db.Model(&models.TeamMembership{}).
		Select("team_memberships.id AS membership_id, users.id AS user_id, users.username, users.nickname, users.email, team_memberships.role").
		Joins("JOIN users ON users.id = team_memberships.user_id AND users.deleted_at IS NULL").
		Where("team_memberships.team_id = ?", teamID).
		Order("team_memberships.created_at ASC").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// TeamsOf returns the teams a user belongs to directly. With includeSubtrees
// the result additionally expands every admin membership into its whole
// subtree, so an admin sees the teams they govern without holding rows there.
func (s *MembershipService) TeamsOf(userID uint, includeSubtrees bool) ([]models.Team, error) {
	var memberships []models.TeamMembership
	if err := s.db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(memberships))
	ids := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		if !seen[m.TeamID] {
			seen[m.TeamID] = true
			ids = append(ids, m.TeamID)
		}
	}

	if includeSubtrees {
		authz := NewAuthorizer(s.db)
		adminSubtree, err := authz.AdminSubtreeTeamIDs(userID)
		if err != nil {
			return nil, err
		}
		for _, id := range adminSubtree {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	if len(ids) == 0 {
		return []models.Team{}, nil
	}

	var teams []models.Team
	if err := s.db.Where("id IN ?", ids).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

// RoleIn returns the user's direct role in a team, or "" when not a member.
func (s *MembershipService) RoleIn(userID, teamID uint) (string, error) {
	var membership models.TeamMembership
	err := s.db.Where("team_id = ? AND user_id = ?", teamID, userID).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return membership.Role, nil
}
