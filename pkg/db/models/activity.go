package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/enums"
)

// Activity is a read-only timeline entry produced for an entity.
type Activity struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	TenantSchema  string                      `gorm:"type:varchar(63);not null;index:idx_activities_entity,priority:1" json:"tenant_schema"`
	EntityType    string                      `gorm:"type:varchar(100);not null;index:idx_activities_entity,priority:2" json:"entity_type"`
	EntityID      string                      `gorm:"type:varchar(100);not null;index:idx_activities_entity,priority:3" json:"entity_id"`
	EventID       int64                       `gorm:"not null;uniqueIndex" json:"event_id"`
	EventType     string                      `gorm:"type:varchar(255);not null" json:"event_type"`
	Action        enums.EventAction           `gorm:"type:varchar(10);not null" json:"action"`
	Description   string                      `gorm:"type:text;not null" json:"description"`
	ChangedFields datatypes.JSONSlice[string] `json:"changed_fields"`
	Actor         string                      `gorm:"type:varchar(100);not null" json:"actor"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime" json:"created_at"`
}

func (a *Activity) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
