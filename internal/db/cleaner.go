package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartReviewLogCleaner deletes review-log rows older than retention every interval.
// Card state is kept, so pruning only shortens the history behind performance stats.
func StartReviewLogCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				res, err := db.ExecContext(ctx, `
                    DELETE FROM review_log
                     WHERE reviewed_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to prune review log", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("pruned review log", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
