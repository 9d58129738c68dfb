package services

import (
	"errors"
	"fmt"

	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

type TeamService struct {
	db *gorm.DB
}

func NewTeamService(db *gorm.DB) *TeamService {
	return &TeamService{db: db}
}

type CreateTeamRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

type UpdateTeamRequest struct {
	Name     string `json:"name"`
	ParentID *uint  `json:"parent_id"`
}

type TeamListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Name     string `form:"name"`
	RootOnly bool   `form:"root_only"`
}

type TeamListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Team `json:"items"`
}

// CreateRootTeam creates a parentless team. Scrum master only. The creator's
// admin membership is written in the same transaction as the team row.
func (s *TeamService) CreateRootTeam(actorID uint, name string) (*models.Team, error) {
	return s.createTeam(actorID, name, nil)
}

// CreateSubTeam creates a team under parentID. Allowed for the scrum master
// or a transitive admin of the parent.
func (s *TeamService) CreateSubTeam(actorID uint, parentID uint, name string) (*models.Team, error) {
	return s.createTeam(actorID, name, &parentID)
}

func (s *TeamService) createTeam(actorID uint, name string, parentID *uint) (*models.Team, error) {
	team := models.Team{
		Name:      name,
		ParentID:  parentID,
		CreatedBy: actorID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		authz := NewAuthorizer(tx)

		if parentID != nil {
			var parent models.Team
			if err := tx.First(&parent, *parentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewNotFound("parent team not found")
				}
				return err
			}
		}

		allowed, err := authz.CanCreateTeam(actorID, parentID)
		if err != nil {
			return err
		}
		if !allowed {
			if parentID == nil {
				return response.NewForbidden("only the scrum master can create root teams")
			}
			return response.NewForbidden("must be an admin of the parent team to create a sub-team")
		}

		var count int64
		if err := tx.Model(&models.Team{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return response.NewConflict("a team with this name already exists")
		}

		if err := tx.Create(&team).Error; err != nil {
			return response.NewConflict("a team with this name already exists")
		}

		membership := models.TeamMembership{
			TeamID: team.ID,
			UserID: actorID,
			Role:   models.TeamRoleAdmin,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}

	return &team, nil
}

// GetByID returns a team with its parent preloaded.
func (s *TeamService) GetByID(id uint) (*models.Team, error) {
	var team models.Team
	if err := s.db.Preload("Parent").First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("team not found")
		}
		return nil, err
	}
	return &team, nil
}

// List returns paginated teams.
func (s *TeamService) List(req *TeamListRequest) (*TeamListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	var teams []models.Team
	var total int64

	query := s.db.Model(&models.Team{})
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.RootOnly {
		query = query.Where("parent_id IS NULL")
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Parent").Offset(offset).Limit(req.PageSize).
		Order("created_at ASC").Find(&teams).Error; err != nil {
		return nil, err
	}

	return &TeamListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    teams,
	}, nil
}

// SubTeams returns the direct children of a team.
func (s *TeamService) SubTeams(teamID uint) ([]models.Team, error) {
	var teams []models.Team
	if err := s.db.Where("parent_id = ?", teamID).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

// Update renames or reparents a team. Scrum master only. Reparenting that
// would make the team an ancestor of itself is rejected before any write.
func (s *TeamService) Update(actorID, teamID uint, req *UpdateTeamRequest) (*models.Team, error) {
	var team models.Team

	err := s.db.Transaction(func(tx *gorm.DB) error {
		authz := NewAuthorizer(tx)

		master, err := authz.IsScrumMaster(actorID)
		if err != nil {
			return err
		}
		if !master {
			return response.NewForbidden("only the scrum master can modify teams")
		}

		if err := tx.First(&team, teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("team not found")
			}
			return err
		}

		updates := make(map[string]interface{})

		if req.Name != "" && req.Name != team.Name {
			var count int64
			if err := tx.Model(&models.Team{}).
				Where("name = ? AND id != ?", req.Name, teamID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return response.NewConflict("a team with this name already exists")
			}
			updates["name"] = req.Name
		}

		if req.ParentID != nil {
			if *req.ParentID == teamID {
				return response.NewConflict("a team cannot be its own parent")
			}
			var parent models.Team
			if err := tx.First(&parent, *req.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewNotFound("parent team not found")
				}
				return err
			}
			subtree, err := authz.SubtreeTeamIDs([]uint{teamID})
			if err != nil {
				return err
			}
			for _, id := range subtree {
				if id == *req.ParentID {
					return response.NewConflict("a team cannot become an ancestor of itself")
				}
			}
			updates["parent_id"] = *req.ParentID
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&team).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(teamID)
}

// Delete removes a team and its whole subtree, cascading to memberships and
// tasks. Scrum master only.
func (s *TeamService) Delete(actorID, teamID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		authz := NewAuthorizer(tx)

		master, err := authz.IsScrumMaster(actorID)
		if err != nil {
			return err
		}
		if !master {
			return response.NewForbidden("only the scrum master can delete teams")
		}

		var team models.Team
		if err := tx.First(&team, teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("team not found")
			}
			return err
		}

		subtree, err := authz.SubtreeTeamIDs([]uint{teamID})
		if err != nil {
			return err
		}

		if err := tx.Where("team_id IN ?", subtree).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id IN ?", subtree).Delete(&models.TeamMembership{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", subtree).Delete(&models.Team{}).Error
	})
}

// PathOf renders the ancestor chain as "Root/…/Team" for notifications and
// digests.
func (s *TeamService) PathOf(teamID uint) (string, error) {
	team, err := s.GetByID(teamID)
	if err != nil {
		return "", err
	}

	chain, err := NewAuthorizer(s.db).AncestorsOf(teamID)
	if err != nil {
		return "", err
	}

	path := team.Name
	for _, ancestor := range chain {
		path = fmt.Sprintf("%s/%s", ancestor.Name, path)
	}
	return path, nil
}
