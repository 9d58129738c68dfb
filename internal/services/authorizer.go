package services

import (
	"errors"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

// MaxHierarchyDepth caps every ancestor walk. The forest is acyclic by
// construction, so the cap is a structural guard: hitting it means the data
// is corrupt and the operation is rejected as a conflict.
const MaxHierarchyDepth = 64

// Authorizer is the single decision point for every (user, team|task, action)
// check. All predicates are read-only; callers that act on a positive answer
// must re-run the predicate against their write transaction.
type Authorizer struct {
	db *gorm.DB
}

func NewAuthorizer(db *gorm.DB) *Authorizer {
	return &Authorizer{db: db}
}

// IsScrumMaster reports whether the user holds the unique super-role.
func (a *Authorizer) IsScrumMaster(userID uint) (bool, error) {
	var user models.User
	if err := a.db.Select("id", "role").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, response.NewNotFound("user not found")
		}
		return false, err
	}
	return user.IsScrumMaster(), nil
}

// IsTransitiveAdmin reports whether the user holds an admin membership in the
// team or in any of its ancestors. The walk is iterative over the parent
// pointer and bounded by MaxHierarchyDepth.
func (a *Authorizer) IsTransitiveAdmin(userID, teamID uint) (bool, error) {
	var team models.Team
	if err := a.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, response.NewNotFound("team not found")
		}
		return false, err
	}

	current := &team
	for depth := 0; depth < MaxHierarchyDepth; depth++ {
		var count int64
		err := a.db.Model(&models.TeamMembership{}).
			Where("team_id = ? AND user_id = ? AND role = ?", current.ID, userID, models.TeamRoleAdmin).
			Count(&count).Error
		if err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}

		if current.ParentID == nil {
			return false, nil
		}

		var parent models.Team
		if err := a.db.First(&parent, *current.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Dangling parent pointer; treat as root.
				return false, nil
			}
			return false, err
		}
		current = &parent
	}

	return false, response.NewConflict("team hierarchy exceeds maximum depth")
}

// AncestorsOf returns the chain of teams from the given team's parent up to
// its root, nearest first. The team itself is not included.
func (a *Authorizer) AncestorsOf(teamID uint) ([]models.Team, error) {
	var team models.Team
	if err := a.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("team not found")
		}
		return nil, err
	}

	var chain []models.Team
	current := team
	for depth := 0; depth < MaxHierarchyDepth; depth++ {
		if current.ParentID == nil {
			return chain, nil
		}
		var parent models.Team
		if err := a.db.First(&parent, *current.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return chain, nil
			}
			return nil, err
		}
		chain = append(chain, parent)
		current = parent
	}

	return nil, response.NewConflict("team hierarchy exceeds maximum depth")
}

// SubtreeTeamIDs expands the given roots breadth-first into the full set of
// descendant team IDs, roots included. The result is deduplicated even if a
// team is reachable from more than one root.
func (a *Authorizer) SubtreeTeamIDs(rootIDs []uint) ([]uint, error) {
	seen := make(map[uint]bool, len(rootIDs))
	var result []uint
	frontier := make([]uint, 0, len(rootIDs))

	for _, id := range rootIDs {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
			frontier = append(frontier, id)
		}
	}

	for depth := 0; depth < MaxHierarchyDepth && len(frontier) > 0; depth++ {
		var children []models.Team
		if err := a.db.Select("id").Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, child := range children {
			if !seen[child.ID] {
				seen[child.ID] = true
				result = append(result, child.ID)
				frontier = append(frontier, child.ID)
			}
		}
	}

	return result, nil
}

// CanCreateTeam decides team creation: root teams are scrum-master only,
// sub-teams additionally allow a transitive admin of the parent.
func (a *Authorizer) CanCreateTeam(userID uint, parentID *uint) (bool, error) {
	master, err := a.IsScrumMaster(userID)
	if err != nil {
		return false, err
	}
	if master {
		return true, nil
	}
	if parentID == nil {
		return false, nil
	}
	return a.IsTransitiveAdmin(userID, *parentID)
}

// CanManageMembership decides who may add or remove members of a team.
func (a *Authorizer) CanManageMembership(userID, teamID uint) (bool, error) {
	master, err := a.IsScrumMaster(userID)
	if err != nil {
		return false, err
	}
	if master {
		return true, nil
	}
	return a.IsTransitiveAdmin(userID, teamID)
}

// CanChangeRole decides who may reassign an existing member's role.
// Deliberately stricter than CanManageMembership: scrum master only.
func (a *Authorizer) CanChangeRole(userID uint) (bool, error) {
	return a.IsScrumMaster(userID)
}

// CanAssignTask decides who may create tasks in a team.
func (a *Authorizer) CanAssignTask(userID, teamID uint) (bool, error) {
	return a.CanManageMembership(userID, teamID)
}

// CanViewTask decides task visibility: scrum master, any member of the
// task's team, or a transitive admin of it.
func (a *Authorizer) CanViewTask(userID uint, task *models.Task) (bool, error) {
	master, err := a.IsScrumMaster(userID)
	if err != nil {
		return false, err
	}
	if master {
		return true, nil
	}

	var count int64
	err = a.db.Model(&models.TeamMembership{}).
		Where("team_id = ? AND user_id = ?", task.TeamID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	return a.IsTransitiveAdmin(userID, task.TeamID)
}

// CanMutateTaskStatus decides who may move a task between statuses: the
// assignee, a transitive admin of the task's team, or the scrum master.
func (a *Authorizer) CanMutateTaskStatus(userID uint, task *models.Task) (bool, error) {
	master, err := a.IsScrumMaster(userID)
	if err != nil {
		return false, err
	}
	if master {
		return true, nil
	}
	if task.AssignedTo != nil && *task.AssignedTo == userID {
		return true, nil
	}
	return a.IsTransitiveAdmin(userID, task.TeamID)
}

// AdminTeamIDs returns the IDs of every team where the user holds a direct
// admin membership.
func (a *Authorizer) AdminTeamIDs(userID uint) ([]uint, error) {
	var memberships []models.TeamMembership
	err := a.db.Select("team_id").
		Where("user_id = ? AND role = ?", userID, models.TeamRoleAdmin).
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.TeamID)
	}
	return ids, nil
}

// AdminSubtreeTeamIDs returns every team the user administers transitively:
// each directly administered team expanded to its whole subtree.
func (a *Authorizer) AdminSubtreeTeamIDs(userID uint) ([]uint, error) {
	roots, err := a.AdminTeamIDs(userID)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, nil
	}
	return a.SubtreeTeamIDs(roots)
}
