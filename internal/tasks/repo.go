package tasks

import (
	"context"
	"errors"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists follow-up tasks created from events.
type Repository interface {
	Create(ctx context.Context, task *models.Task) error
	FindBySource(ctx context.Context, eventID int64, rule string) (*models.Task, error)
	ListByEntity(ctx context.Context, tenant, entityType, entityID string) ([]models.Task, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// FindBySource returns the task a rule produced for an event, or nil when none exists.
func (r *repositoryImpl) FindBySource(ctx context.Context, eventID int64, rule string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("source_event_id = ? AND rule_name = ?", eventID, rule).
		Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repositoryImpl) ListByEntity(ctx context.Context, tenant, entityType, entityID string) ([]models.Task, error) {
	var rows []models.Task
	err := r.db.WithContext(ctx).
		Where("tenant_schema = ? AND entity_type = ? AND entity_id = ?", tenant, entityType, entityID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
