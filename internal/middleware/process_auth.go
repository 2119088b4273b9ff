package middleware

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/process-tracker-api/internal/errors"
	"github.com/yukikurage/process-tracker-api/internal/services"
)

// ContextKeyProcess holds the process loaded by RequireProcessAccess.
const ContextKeyProcess = "process"

// RequireProcessAccess loads the process named by the :id parameter.
// The caller must own it.
func RequireProcessAccess(processService *services.ProcessService) gin.HandlerFunc {
	return func(c *gin.Context) {
		processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid process ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		process, err := processService.GetProcess(c.Request.Context(), userID, processID)
		if err != nil {
			// Return 404 instead of 403 to avoid leaking process existence
			if errors.Is(err, services.ErrProcessNotFound) {
				apierrors.NotFound(c, "Process not found")
			} else {
				slog.ErrorContext(c.Request.Context(), "failed to load process", "process_id", processID, "error", err)
				apierrors.InternalError(c, "")
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyProcess, *process)
		c.Next()
	}
}
