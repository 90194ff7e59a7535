package api

import (
	"github.com/gin-gonic/gin"

	"github.com/souqly/marketd/internal/handlers"
	"github.com/souqly/marketd/internal/monitoring"
)

func registerMonitoringRoutes(r gin.IRouter, mon *monitoring.Module) {
	r.GET("/metrics", gin.WrapH(mon.Handler()))
	r.GET("/status", handlers.Status)
}
