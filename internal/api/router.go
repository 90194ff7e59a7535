package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/souqly/marketd/internal/middleware"
	"github.com/souqly/marketd/internal/monitoring"
)

// NewRouter builds the read-only ops engine: health probes, metrics and the job summary.
func NewRouter(mon *monitoring.Module) (*gin.Engine, error) {
	if mon == nil {
		return nil, fmt.Errorf("monitoring module must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, mon.Health())
	registerMonitoringRoutes(r, mon)

	r.NoRoute(middleware.NotFoundHandler)
	return r, nil
}
