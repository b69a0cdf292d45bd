package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is one administrative action recorded for the whole back office,
// independent of the per-rule history trail.
type AuditLog struct {
	ID snowflake.ID `gorm:"primaryKey"`

	ActorID    *string `gorm:"column:actor_id;type:text;index"`
	ActorEmail *string `gorm:"column:actor_email;type:text"`

	Action     string  `gorm:"type:text;not null;index"`
	TargetType string  `gorm:"column:target_type;type:text;not null"`
	TargetID   *string `gorm:"column:target_id;type:text;index"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	RequestID *string           `gorm:"column:request_id;type:text"`

	CreatedAt time.Time `gorm:"not null;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// AuditCursor is the keyset position for descending created_at/id pagination.
type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
