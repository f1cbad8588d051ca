package control

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/db/models"
)

// Repository stores one control row per tenant schema.
type Repository interface {
	GetOrCreate(ctx context.Context, tenant string) (*models.EventProcessingControl, error)
	AnyPaused(ctx context.Context, tenants ...string) (bool, error)
	SetPaused(ctx context.Context, tenant, actor, reason string, now time.Time) error
	SetResumed(ctx context.Context, tenant, actor string, now time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// GetOrCreate returns the tenant's control row, inserting an unpaused one when
// missing. Concurrent creators converge on the same row.
func (r *repositoryImpl) GetOrCreate(ctx context.Context, tenant string) (*models.EventProcessingControl, error) {
	row, err := r.find(ctx, tenant)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row = &models.EventProcessingControl{TenantSchema: tenant}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return r.find(ctx, tenant)
		}
		return nil, err
	}
	return row, nil
}

func (r *repositoryImpl) find(ctx context.Context, tenant string) (*models.EventProcessingControl, error) {
	var row models.EventProcessingControl
	if err := r.db.WithContext(ctx).Where("tenant_schema = ?", tenant).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) AnyPaused(ctx context.Context, tenants ...string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EventProcessingControl{}).
		Where("tenant_schema IN ? AND is_paused = ?", tenants, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) SetPaused(ctx context.Context, tenant, actor, reason string, now time.Time) error {
	return r.update(ctx, tenant, map[string]any{
		"is_paused":    true,
		"paused_at":    now,
		"paused_by":    actor,
		"pause_reason": reason,
		"updated_at":   now,
	})
}

func (r *repositoryImpl) SetResumed(ctx context.Context, tenant, actor string, now time.Time) error {
	return r.update(ctx, tenant, map[string]any{
		"is_paused":  false,
		"resumed_at": now,
		"resumed_by": actor,
		"updated_at": now,
	})
}

func (r *repositoryImpl) update(ctx context.Context, tenant string, fields map[string]any) error {
	if _, err := r.GetOrCreate(ctx, tenant); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.EventProcessingControl{}).
		Where("tenant_schema = ?", tenant).
		Updates(fields).Error
}
