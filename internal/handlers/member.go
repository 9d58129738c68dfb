package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

type MemberHandler struct {
	membershipService *services.MembershipService
}

func NewMemberHandler(db *gorm.DB) *MemberHandler {
	return &MemberHandler{
		membershipService: services.NewMembershipService(db),
	}
}

// List returns the members of a team
// GET /api/teams/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}

	members, err := h.membershipService.ListMembers(teamID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, members)
}

// Add enrolls a user into a team
// POST /api/teams/:id/members
func (h *MemberHandler) Add(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	membership, err := h.membershipService.AddMember(actorID, teamID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, membership)
}

// ChangeRole reassigns a member's role
// PUT /api/teams/:id/members/:userID
func (h *MemberHandler) ChangeRole(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userID")
	if !ok {
		return
	}

	var req services.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	membership, err := h.membershipService.ChangeRole(actorID, teamID, userID, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, membership)
}

// Remove drops a user's membership
// DELETE /api/teams/:id/members/:userID
func (h *MemberHandler) Remove(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userID")
	if !ok {
		return
	}

	actorID := middleware.GetUserID(c)
	if err := h.membershipService.RemoveMember(actorID, teamID, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "member removed successfully"})
}
