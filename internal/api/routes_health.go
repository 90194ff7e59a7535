package api

import (
	"github.com/gin-gonic/gin"

	"github.com/souqly/marketd/internal/handlers"
	"github.com/souqly/marketd/internal/monitoring"
)

func registerHealthRoutes(r gin.IRouter, manager *monitoring.HealthManager) {
	handler := handlers.NewHealthHandler(manager)

	r.GET("/health/live", handler.Live)
	r.GET("/health/ready", handler.Ready)
}
