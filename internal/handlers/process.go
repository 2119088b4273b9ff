package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/process-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/process-tracker-api/internal/errors"
	"github.com/yukikurage/process-tracker-api/internal/middleware"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/services"
	"github.com/yukikurage/process-tracker-api/internal/utils"
)

type ProcessHandler struct {
	processService *services.ProcessService
}

func NewProcessHandler(processService *services.ProcessService) *ProcessHandler {
	return &ProcessHandler{
		processService: processService,
	}
}

// ListProcesses returns the current user's processes, newest first
func (h *ProcessHandler) ListProcesses(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)

	processes, total, err := h.processService.ListProcesses(c.Request.Context(), userID, params)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list processes", "user_id", userID, "error", err)
		apierrors.InternalError(c, "Failed to fetch processes")
		return
	}

	c.JSON(http.StatusOK, dto.ToProcessListResponse(processes, params.Page, params.Limit, total))
}

// GetProcess returns a specific process by ID
// Process is already loaded by RequireProcessAccess middleware
func (h *ProcessHandler) GetProcess(c *gin.Context) {
	processInterface, exists := c.Get(middleware.ContextKeyProcess)
	if !exists {
		apierrors.InternalError(c, "Process not found in context")
		return
	}

	process, ok := processInterface.(models.Process)
	if !ok {
		apierrors.InternalError(c, "Invalid process data")
		return
	}

	c.JSON(http.StatusOK, dto.ToProcessDTO(process))
}
