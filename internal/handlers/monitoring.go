package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/souqly/marketd/internal/monitoring"
	"github.com/souqly/marketd/pkg/response"
)

// Status returns the aggregated scheduler, notification and job summary.
func Status(c *gin.Context) {
	response.Success(c, http.StatusOK, monitoring.Snapshot())
}
