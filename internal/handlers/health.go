package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/souqly/marketd/internal/monitoring"
	"github.com/souqly/marketd/pkg/response"
)

// HealthHandler serves liveness and readiness reports.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthHandler constructs a health handler. A nil manager reports every probe as down.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Live reports whether the process is running.
func (h *HealthHandler) Live(c *gin.Context) {
	if h.manager == nil {
		response.Unavailable(c, "NOT_LIVE", gin.H{"status": monitoring.StatusDown})
		return
	}
	writeHealthReport(c, h.manager.EvaluateLiveness(c.Request.Context()), "NOT_LIVE")
}

// Ready reports whether the store answers and the jobs keep succeeding.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.manager == nil {
		response.Unavailable(c, "NOT_READY", gin.H{"status": monitoring.StatusDown})
		return
	}
	writeHealthReport(c, h.manager.EvaluateReadiness(c.Request.Context()), "NOT_READY")
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport, code string) {
	payload := gin.H{
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	}
	if !report.Success {
		response.Unavailable(c, code, payload)
		return
	}
	response.Success(c, http.StatusOK, payload)
}
