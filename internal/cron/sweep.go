package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// deleteBatch removes at most limit rows older than cutoff inside tx.
type deleteBatch func(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)

type sweepResult struct {
	Cutoff  time.Time
	Batches int
	Deleted int64
}

// sweep runs bounded deletes, one transaction per batch, until a batch comes
// back short. Rows deleted by committed batches stay deleted when a later
// batch fails.
func sweep(ctx context.Context, db txRunner, table string, cutoff time.Time, batchSize int, del deleteBatch, m *metrics.CronJobMetrics) (sweepResult, error) {
	res := sweepResult{Cutoff: cutoff}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var deleted int64
		err := db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			deleted, err = del(ctx, tx, cutoff, batchSize)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("%s cleanup batch %d: %w", table, res.Batches+1, err)
		}
		res.Batches++
		res.Deleted += deleted
		m.AddRowsDeleted(table, deleted)
		if deleted < int64(batchSize) {
			return res, nil
		}
	}
}
