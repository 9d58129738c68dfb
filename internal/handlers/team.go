package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

type TeamHandler struct {
	teamService       *services.TeamService
	membershipService *services.MembershipService
}

func NewTeamHandler(db *gorm.DB) *TeamHandler {
	return &TeamHandler{
		teamService:       services.NewTeamService(db),
		membershipService: services.NewMembershipService(db),
	}
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// Create creates a root team
// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	var req services.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	team, err := h.teamService.CreateRootTeam(actorID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, team)
}

// CreateSubTeam creates a team under an existing one
// POST /api/teams/:id/subteams
func (h *TeamHandler) CreateSubTeam(c *gin.Context) {
	parentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	team, err := h.teamService.CreateSubTeam(actorID, parentID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, team)
}

// List returns paginated teams
// GET /api/teams
func (h *TeamHandler) List(c *gin.Context) {
	var req services.TeamListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.teamService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// ListMine returns the teams the current user belongs to. With
// include_subtrees=true every transitively administered team is included.
// GET /api/teams/mine
func (h *TeamHandler) ListMine(c *gin.Context) {
	includeSubtrees := c.Query("include_subtrees") == "true"
	userID := middleware.GetUserID(c)

	teams, err := h.membershipService.TeamsOf(userID, includeSubtrees)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, teams)
}

// GetByID returns a team with its parent and direct children
// GET /api/teams/:id
func (h *TeamHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	team, err := h.teamService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	children, err := h.teamService.SubTeams(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"team":      team,
		"sub_teams": children,
	})
}

// Update renames or reparents a team
// PUT /api/teams/:id
func (h *TeamHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	team, err := h.teamService.Update(actorID, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, team)
}

// Delete removes a team and its whole subtree
// DELETE /api/teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	actorID := middleware.GetUserID(c)
	if err := h.teamService.Delete(actorID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "team deleted successfully"})
}
