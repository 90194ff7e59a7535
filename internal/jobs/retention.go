package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/souqly/marketd/internal/models"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

// Retention purges behaviour signals older than the retention horizon.
type Retention struct {
	base
}

// NewRetention constructs the retention sweep.
func NewRetention(deps Deps) *Retention {
	return &Retention{base: newBase(NameRetention, deps)}
}

// Run deletes stale signals in one statement.
func (r *Retention) Run(ctx context.Context) (Result, error) {
	var result Result
	if r.db == nil {
		return result, r.ready()
	}

	cutoff := r.now().Add(-r.cfg.Retention)
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.Signal{})
	if res.Error != nil {
		return result, apperrors.Transient("retention: delete signals", res.Error)
	}
	result.Affected = res.RowsAffected

	r.log.Info("job completed",
		zap.Int64("signals_purged", result.Affected),
		zap.Time("cutoff", cutoff),
	)
	return result, nil
}
