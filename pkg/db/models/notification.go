package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/enums"
)

// Notification is an in-app notification addressed to one recipient within a tenant.
type Notification struct {
	ID           uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	TenantSchema string                 `gorm:"type:varchar(63);not null;index:idx_notifications_recipient,priority:1" json:"tenant_schema"`
	Recipient    string                 `gorm:"type:varchar(100);not null;index:idx_notifications_recipient,priority:2" json:"recipient"`
	Type         enums.NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title        string                 `gorm:"type:text;not null" json:"title"`
	Message      string                 `gorm:"type:text;not null" json:"message"`
	DueDate      *time.Time             `json:"due_date,omitempty"`
	Metadata     datatypes.JSONMap      `json:"metadata"`
	EventID      *int64                 `gorm:"index" json:"event_id,omitempty"`
	TaskID       *uuid.UUID             `gorm:"type:uuid" json:"task_id,omitempty"`
	ReadAt       *time.Time             `json:"read_at,omitempty"`
	CreatedAt    time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
