package models

import "time"

// GlobalTenant is the schema assigned to legacy events without a tenant. Its
// control row doubles as the switch that pauses every tenant.
const GlobalTenant = "public"

// EventProcessingControl is the pause switch for one tenant schema.
type EventProcessingControl struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	TenantSchema string     `gorm:"column:tenant_schema;type:varchar(63);not null;uniqueIndex" json:"tenant_schema"`
	IsPaused     bool       `gorm:"column:is_paused;not null;default:false" json:"is_paused"`
	PausedAt     *time.Time `gorm:"column:paused_at" json:"paused_at,omitempty"`
	PausedBy     *string    `gorm:"column:paused_by;type:varchar(100)" json:"paused_by,omitempty"`
	PauseReason  *string    `gorm:"column:pause_reason" json:"pause_reason,omitempty"`
	ResumedAt    *time.Time `gorm:"column:resumed_at" json:"resumed_at,omitempty"`
	ResumedBy    *string    `gorm:"column:resumed_by;type:varchar(100)" json:"resumed_by,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (EventProcessingControl) TableName() string { return "event_processing_controls" }
