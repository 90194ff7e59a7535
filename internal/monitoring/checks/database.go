package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/souqly/marketd/internal/database"
	"github.com/souqly/marketd/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database returns a readiness probe that pings the store.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "database not configured",
				Duration: time.Since(start),
			}
		}

		err := database.Ping(ctx, db, chooseTimeout(timeout, defaultDatabaseTimeout))
		return monitoring.ResultFromError("database", err, time.Since(start))
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
