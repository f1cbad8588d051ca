package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/angelmondragon/eventcore/pkg/enums"
)

// DefaultMaxRetries is applied when an event is enqueued without an explicit budget.
const DefaultMaxRetries = 2

// Event is a persisted entity mutation awaiting (or done with) handler processing.
type Event struct {
	ID             int64                              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EventType      string                             `gorm:"column:event_type;type:varchar(255);not null;index" json:"event_type"`
	EntityType     string                             `gorm:"column:entity_type;type:varchar(100);not null" json:"entity_type"`
	EntityID       string                             `gorm:"column:entity_id;type:varchar(100);not null" json:"entity_id"`
	TenantSchema   *string                            `gorm:"column:tenant_schema;type:varchar(63);index" json:"tenant_schema"`
	Action         enums.EventAction                  `gorm:"column:action;type:varchar(10);not null" json:"action"`
	PreviousState  datatypes.JSONMap                  `gorm:"column:previous_state" json:"previous_state"`
	CurrentState   datatypes.JSONMap                  `gorm:"column:current_state" json:"current_state"`
	ChangedFields  datatypes.JSONSlice[string]        `gorm:"column:changed_fields" json:"changed_fields"`
	Status         enums.EventStatus                  `gorm:"column:status;type:varchar(20);not null;default:PENDING;index" json:"status"`
	RetryCount     int                                `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	MaxRetries     int                                `gorm:"column:max_retries;not null;default:2" json:"max_retries"`
	ErrorMessage   *string                            `gorm:"column:error_message" json:"error_message,omitempty"`
	ProcessedAt    *time.Time                         `gorm:"column:processed_at" json:"processed_at,omitempty"`
	HandlerResults datatypes.JSONType[HandlerResults] `gorm:"column:handler_results" json:"handler_results"`
	Metadata       datatypes.JSONMap                  `gorm:"column:metadata" json:"metadata"`
	PerformedBy    *string                            `gorm:"column:performed_by;type:varchar(100)" json:"performed_by,omitempty"`
	NextAttemptAt  *time.Time                         `gorm:"column:next_attempt_at" json:"next_attempt_at,omitempty"`
	CreatedAt      time.Time                          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// Tenant returns the tenant schema or an empty string for legacy rows.
func (e *Event) Tenant() string {
	if e == nil || e.TenantSchema == nil {
		return ""
	}
	return *e.TenantSchema
}

// Actor returns performed_by, falling back to "system".
func (e *Event) Actor() string {
	if e == nil || e.PerformedBy == nil || *e.PerformedBy == "" {
		return "system"
	}
	return *e.PerformedBy
}

// HandlerResult is the recorded outcome of one handler for one event.
type HandlerResult struct {
	Status      enums.HandlerStatus `json:"status"`
	Error       string              `json:"error,omitempty"`
	ProducedRef string              `json:"produced_ref,omitempty"`
}

// HandlerResults maps handler name to its outcome.
type HandlerResults map[string]HandlerResult

// AnyFailed reports whether at least one handler failed.
func (r HandlerResults) AnyFailed() bool {
	for _, res := range r {
		if res.Status == enums.HandlerStatusFailed {
			return true
		}
	}
	return false
}
