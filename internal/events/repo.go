package events

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	"gorm.io/gorm"
)

// Filter narrows event listings. Tenant is mandatory; the remaining fields are optional.
type Filter struct {
	Tenant     string
	Status     enums.EventStatus
	EventType  string
	EntityType string
	EntityID   string
	Limit      int
	// Oldest first (processing order) instead of newest first (display order).
	Ascending bool
}

// Repository is the tenant-scoped event store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, evt *models.Event) error
	CreateAll(ctx context.Context, evts []*models.Event) error
	Get(ctx context.Context, tenant string, id int64) (*models.Event, error)
	List(ctx context.Context, filter Filter) ([]models.Event, error)
	ListPendingForProcessing(ctx context.Context, tenant string, limit int, now time.Time) ([]models.Event, error)
	ListByStatus(ctx context.Context, tenant string, status enums.EventStatus, limit int) ([]models.Event, error)
	ListByTypeAndStatus(ctx context.Context, tenant, eventType string, status enums.EventStatus, limit int) ([]models.Event, error)
	ListByEntity(ctx context.Context, tenant, entityType, entityID string, limit int) ([]models.Event, error)
	Claim(ctx context.Context, tenant string, id int64, now time.Time) (bool, error)
	SaveOutcome(ctx context.Context, evt *models.Event) (bool, error)
	CountByStatus(ctx context.Context, tenant string) (map[enums.EventStatus]int64, error)
	ResetFailed(ctx context.Context, tenant string, id int64, now time.Time) (bool, error)
	ResetStaleProcessing(ctx context.Context, olderThan, now time.Time) (StaleReset, error)
	DeleteCompletedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, batchSize int) (int64, error)
	PendingTenants(ctx context.Context, now time.Time) ([]string, error)
}

// StaleReset counts the PROCESSING events recovered after a worker crash.
type StaleReset struct {
	Requeued int64
	Failed   int64
}

// interruptedMessage is stored on events whose worker died mid-chain.
const interruptedMessage = "processing interrupted before the outcome was saved"

// ErrNotFound is returned by Get when the event does not exist in the tenant.
var ErrNotFound = errors.New("event not found")

const defaultListLimit = 100

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, evt *models.Event) error {
	return r.db.WithContext(ctx).Create(evt).Error
}

// CreateAll inserts evts in one transaction; either every event is stored or none.
func (r *repositoryImpl) CreateAll(ctx context.Context, evts []*models.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, evt := range evts {
			if err := tx.Create(evt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repositoryImpl) Get(ctx context.Context, tenant string, id int64) (*models.Event, error) {
	var evt models.Event
	err := scopeTenant(r.db.WithContext(ctx), tenant).Where("id = ?", id).Take(&evt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

func (r *repositoryImpl) List(ctx context.Context, filter Filter) ([]models.Event, error) {
	query := scopeTenant(r.db.WithContext(ctx).Model(&models.Event{}), filter.Tenant)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Ascending {
		query = query.Order("created_at ASC, id ASC")
	} else {
		query = query.Order("created_at DESC, id DESC")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rows []models.Event
	if err := query.Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingForProcessing returns due PENDING events in FIFO order.
func (r *repositoryImpl) ListPendingForProcessing(ctx context.Context, tenant string, limit int, now time.Time) ([]models.Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []models.Event
	err := scopeTenant(r.db.WithContext(ctx), tenant).
		Where("status = ?", enums.EventStatusPending).
		Where("(next_attempt_at IS NULL OR next_attempt_at <= ?)", now).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) ListByStatus(ctx context.Context, tenant string, status enums.EventStatus, limit int) ([]models.Event, error) {
	return r.List(ctx, Filter{Tenant: tenant, Status: status, Limit: limit})
}

func (r *repositoryImpl) ListByTypeAndStatus(ctx context.Context, tenant, eventType string, status enums.EventStatus, limit int) ([]models.Event, error) {
	return r.List(ctx, Filter{Tenant: tenant, EventType: eventType, Status: status, Limit: limit})
}

func (r *repositoryImpl) ListByEntity(ctx context.Context, tenant, entityType, entityID string, limit int) ([]models.Event, error) {
	return r.List(ctx, Filter{Tenant: tenant, EntityType: entityType, EntityID: entityID, Limit: limit})
}

// Claim moves a PENDING event to PROCESSING. Only one caller can win.
func (r *repositoryImpl) Claim(ctx context.Context, tenant string, id int64, now time.Time) (bool, error) {
	result := scopeTenant(r.db.WithContext(ctx).Model(&models.Event{}), tenant).
		Where("id = ? AND status = ?", id, enums.EventStatusPending).
		Updates(map[string]any{
			"status":     enums.EventStatusProcessing,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SaveOutcome persists the result of a processing run. The write only applies
// while the row is still PROCESSING so a stale worker cannot overwrite a newer state.
func (r *repositoryImpl) SaveOutcome(ctx context.Context, evt *models.Event) (bool, error) {
	result := scopeTenant(r.db.WithContext(ctx).Model(&models.Event{}), evt.Tenant()).
		Where("id = ? AND status = ?", evt.ID, enums.EventStatusProcessing).
		Updates(map[string]any{
			"status":          evt.Status,
			"retry_count":     evt.RetryCount,
			"error_message":   evt.ErrorMessage,
			"processed_at":    evt.ProcessedAt,
			"handler_results": evt.HandlerResults,
			"next_attempt_at": evt.NextAttemptAt,
			"updated_at":      evt.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repositoryImpl) CountByStatus(ctx context.Context, tenant string) (map[enums.EventStatus]int64, error) {
	type row struct {
		Status enums.EventStatus
		Total  int64
	}
	var rows []row
	err := scopeTenant(r.db.WithContext(ctx).Model(&models.Event{}), tenant).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := map[enums.EventStatus]int64{
		enums.EventStatusPending:    0,
		enums.EventStatusProcessing: 0,
		enums.EventStatusCompleted:  0,
		enums.EventStatusFailed:     0,
	}
	for _, rw := range rows {
		counts[rw.Status] = rw.Total
	}
	return counts, nil
}

// ResetFailed returns a FAILED event to PENDING with a fresh retry budget.
func (r *repositoryImpl) ResetFailed(ctx context.Context, tenant string, id int64, now time.Time) (bool, error) {
	result := scopeTenant(r.db.WithContext(ctx).Model(&models.Event{}), tenant).
		Where("id = ? AND status = ?", id, enums.EventStatusFailed).
		Updates(map[string]any{
			"status":          enums.EventStatusPending,
			"retry_count":     0,
			"processed_at":    nil,
			"next_attempt_at": nil,
			"updated_at":      now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ResetStaleProcessing recovers events stuck in PROCESSING (worker crashed
// mid-chain) across all tenants. The interrupted run counts as an attempt:
// events with budget left return to PENDING with retry_count+1, the rest
// become FAILED.
func (r *repositoryImpl) ResetStaleProcessing(ctx context.Context, olderThan, now time.Time) (StaleReset, error) {
	var reset StaleReset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		failed := tx.Model(&models.Event{}).
			Where("status = ? AND updated_at < ? AND retry_count >= max_retries", enums.EventStatusProcessing, olderThan).
			Updates(map[string]any{
				"status":          enums.EventStatusFailed,
				"error_message":   interruptedMessage,
				"processed_at":    now,
				"next_attempt_at": nil,
				"updated_at":      now,
			})
		if failed.Error != nil {
			return failed.Error
		}
		requeued := tx.Model(&models.Event{}).
			Where("status = ? AND updated_at < ?", enums.EventStatusProcessing, olderThan).
			Updates(map[string]any{
				"status":          enums.EventStatusPending,
				"retry_count":     gorm.Expr("retry_count + 1"),
				"error_message":   interruptedMessage,
				"next_attempt_at": nil,
				"updated_at":      now,
			})
		if requeued.Error != nil {
			return requeued.Error
		}
		reset = StaleReset{Requeued: requeued.RowsAffected, Failed: failed.RowsAffected}
		return nil
	})
	if err != nil {
		return StaleReset{}, err
	}
	return reset, nil
}

// DeleteCompletedBefore removes at most batchSize COMPLETED events processed before cutoff.
func (r *repositoryImpl) DeleteCompletedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, batchSize int) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	conn = conn.WithContext(ctx)
	ids := conn.Session(&gorm.Session{NewDB: true}).
		Model(&models.Event{}).
		Select("id").
		Where("status = ? AND processed_at IS NOT NULL AND processed_at < ?", enums.EventStatusCompleted, cutoff).
		Order("id ASC").
		Limit(batchSize)
	result := conn.
		Where("status = ?", enums.EventStatusCompleted).
		Where("id IN (?)", ids).
		Delete(&models.Event{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// PendingTenants lists tenants with due PENDING events. Legacy rows without a
// tenant are reported under the global tenant.
func (r *repositoryImpl) PendingTenants(ctx context.Context, now time.Time) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).Raw(
		"SELECT DISTINCT COALESCE(tenant_schema, ?) FROM events WHERE status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
		models.GlobalTenant, enums.EventStatusPending, now,
	).Scan(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func scopeTenant(db *gorm.DB, tenant string) *gorm.DB {
	if tenant == models.GlobalTenant {
		return db.Where("(tenant_schema = ? OR tenant_schema IS NULL)", tenant)
	}
	return db.Where("tenant_schema = ?", tenant)
}
