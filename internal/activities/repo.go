package activities

import (
	"context"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists timeline entries.
type Repository interface {
	Create(ctx context.Context, activity *models.Activity) (bool, error)
	FindByEvent(ctx context.Context, eventID int64) (*models.Activity, error)
	ListByEntity(ctx context.Context, tenant, entityType, entityID string, limit int) ([]models.Activity, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Create inserts the activity unless one already exists for the same event.
// The boolean reports whether a new row was written.
func (r *repositoryImpl) Create(ctx context.Context, activity *models.Activity) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(activity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repositoryImpl) FindByEvent(ctx context.Context, eventID int64) (*models.Activity, error) {
	var activity models.Activity
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *repositoryImpl) ListByEntity(ctx context.Context, tenant, entityType, entityID string, limit int) ([]models.Activity, error) {
	var rows []models.Activity
	err := r.db.WithContext(ctx).
		Where("tenant_schema = ? AND entity_type = ? AND entity_id = ?", tenant, entityType, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
