package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/metrics"
)

const (
	eventRetentionDays   = 30
	eventCleanupBatch    = 1000
	eventCleanupJobName  = "event-cleanup"
	maxEventCleanupBatch = 10000
)

type eventCleanupRepo interface {
	DeleteCompletedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, batchSize int) (int64, error)
}

type EventCleanupJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    eventCleanupRepo
	Metrics       *metrics.CronJobMetrics
	Enabled       bool
	RetentionDays int
	BatchSize     int
}

// EventCleanupJob deletes COMPLETED events past the retention window. Events
// in any other status are never removed.
type EventCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      eventCleanupRepo
	metrics   *metrics.CronJobMetrics
	enabled   bool
	retention int
	batchSize int
	now       func() time.Time
}

func NewEventCleanupJob(params EventCleanupJobParams) (*EventCleanupJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("events repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = eventRetentionDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = eventCleanupBatch
	}
	return &EventCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		metrics:   params.Metrics,
		enabled:   params.Enabled,
		retention: retention,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

func (j *EventCleanupJob) Name() string { return eventCleanupJobName }

func (j *EventCleanupJob) Run(ctx context.Context) error {
	_, err := j.CleanupOldEvents(ctx, j.retention, j.batchSize)
	return err
}

// CleanupOldEvents removes COMPLETED events processed more than retentionDays
// ago and returns the number of rows deleted. Non-positive arguments fall back
// to the configured values.
func (j *EventCleanupJob) CleanupOldEvents(ctx context.Context, retentionDays, batchSize int) (int64, error) {
	if !j.enabled {
		j.logg.Info(ctx, "event cleanup disabled; skipping")
		return 0, nil
	}
	if retentionDays <= 0 {
		retentionDays = j.retention
	}
	if batchSize <= 0 {
		batchSize = j.batchSize
	}
	if batchSize > maxEventCleanupBatch {
		batchSize = maxEventCleanupBatch
	}
	cutoff := j.now().UTC().AddDate(0, 0, -retentionDays)

	res, err := sweep(ctx, j.db, "events", cutoff, batchSize, j.repo.DeleteCompletedBefore, j.metrics)
	if err != nil {
		return res.Deleted, err
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         res.Cutoff,
		"retention_days": retentionDays,
		"batch_size":     batchSize,
		"batches":        res.Batches,
		"rows_deleted":   res.Deleted,
	})
	j.logg.Info(logCtx, "event cleanup complete")
	return res.Deleted, nil
}
