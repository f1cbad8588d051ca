package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/enums"
)

// Task is a follow-up work item created by the task handler.
type Task struct {
	ID            uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantSchema  string             `gorm:"type:varchar(63);not null;index" json:"tenant_schema"`
	Title         string             `gorm:"type:text;not null" json:"title"`
	Description   string             `gorm:"type:text" json:"description,omitempty"`
	AssignedTo    *string            `gorm:"type:varchar(100)" json:"assigned_to,omitempty"`
	EntityType    string             `gorm:"type:varchar(100);not null" json:"entity_type"`
	EntityID      string             `gorm:"type:varchar(100);not null" json:"entity_id"`
	Status        enums.TaskStatus   `gorm:"type:varchar(20);not null;default:open" json:"status"`
	Priority      enums.TaskPriority `gorm:"type:varchar(20);not null;default:normal" json:"priority"`
	DueDate       *time.Time         `json:"due_date,omitempty"`
	SourceEventID int64              `gorm:"not null;uniqueIndex:idx_tasks_source,priority:1" json:"source_event_id"`
	RuleName      string             `gorm:"type:varchar(100);not null;uniqueIndex:idx_tasks_source,priority:2" json:"rule_name"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
