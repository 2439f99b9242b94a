package model

import (
	"time"
)

// ProcessedEvent marks a disclosure event as fully handled to ensure idempotency
type ProcessedEvent struct {
	EventUID    string    `json:"event_uid" gorm:"primaryKey;type:varchar(64)"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TableName specifies the table name for ProcessedEvent
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
