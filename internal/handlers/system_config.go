package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/pkg/response"
	"gorm.io/gorm"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(db *gorm.DB) *SystemConfigHandler {
	return &SystemConfigHandler{
		configService: services.NewSystemConfigService(db),
	}
}

// GetByGroup returns the settings rows of one group
// GET /api/system-configs?group=digest
func (h *SystemConfigHandler) GetByGroup(c *gin.Context) {
	group := c.Query("group")
	if group == "" {
		response.BadRequest(c, "group is required")
		return
	}

	configs, err := h.configService.GetByGroup(group)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, configs)
}

// GetDigestSchedule returns the digest dispatch time
// GET /api/system-configs/digest
func (h *SystemConfigHandler) GetDigestSchedule(c *gin.Context) {
	response.Success(c, h.configService.GetDigestSchedule())
}

// UpdateDigestSchedule changes the digest dispatch time. Applied on the next
// scheduler reload.
// PUT /api/system-configs/digest
func (h *SystemConfigHandler) UpdateDigestSchedule(c *gin.Context) {
	var req services.UpdateDigestConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.configService.UpdateDigestSchedule(&req); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.configService.GetDigestSchedule())
}
