package model

import (
	"time"
)

// MessageRecord is the durable business record for a relayed disclosure message
type MessageRecord struct {
	EventUID    string    `json:"event_uid" gorm:"primaryKey;type:varchar(64)"`
	CompanyName string    `json:"company_name" gorm:"type:varchar(255)"`
	INN         string    `json:"inn" gorm:"type:varchar(32);index"`
	MessageType string    `json:"message_type" gorm:"type:varchar(255)"`
	MessageDate string    `json:"message_date" gorm:"type:varchar(64)"`
	MessageText string    `json:"message_text" gorm:"type:text"`
	MessageURL  string    `json:"message_url" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for MessageRecord
func (MessageRecord) TableName() string {
	return "messages"
}
