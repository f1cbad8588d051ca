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
	notificationRetentionDays = 90
	notificationCleanupBatch  = 1000
)

type notificationsCleanupRepo interface {
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, batchSize int) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Metrics    *metrics.CronJobMetrics
	Enabled    bool
	// Retention is in days; unread notifications are never removed.
	Retention int
	BatchSize int
}

// NewNotificationCleanupJob removes read notifications older than the retention.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("notifications repository required")
	}
	job := &notificationCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		metrics:   params.Metrics,
		enabled:   params.Enabled,
		retention: params.Retention,
		batchSize: params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = notificationRetentionDays
	}
	if job.batchSize <= 0 {
		job.batchSize = notificationCleanupBatch
	}
	return job, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      notificationsCleanupRepo
	metrics   *metrics.CronJobMetrics
	enabled   bool
	retention int
	batchSize int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	if !j.enabled {
		return nil
	}
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	res, err := sweep(ctx, j.db, "notifications", cutoff, j.batchSize, j.repo.DeleteReadBefore, j.metrics)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         res.Cutoff,
		"retention_days": j.retention,
		"batches":        res.Batches,
		"rows_deleted":   res.Deleted,
	})
	if err != nil {
		return err
	}
	j.logg.Info(logCtx, "read notification cleanup complete")
	return nil
}
