package model

import (
	"time"
)

// Report is the durable business record for a relayed disclosure file
type Report struct {
	EventUID    string    `json:"event_uid" gorm:"primaryKey;type:varchar(64)"`
	CompanyName string    `json:"company_name" gorm:"type:varchar(255)"`
	INN         string    `json:"inn" gorm:"type:varchar(32);index"`
	ReportType  string    `json:"report_type" gorm:"type:varchar(255)"`
	ReportDate  string    `json:"report_date" gorm:"type:varchar(32)"`
	Description string    `json:"description" gorm:"type:text"`
	DocumentURL string    `json:"document_url" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for Report
func (Report) TableName() string {
	return "reports"
}
