package model

import (
	"time"
)

// UserCompany represents a per-user company watch
type UserCompany struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_user_inn"`
	INN         string    `json:"inn" gorm:"type:varchar(32);not null;uniqueIndex:idx_user_inn"`
	CompanyName string    `json:"company_name" gorm:"type:varchar(255)"`
	OGRN        string    `json:"ogrn" gorm:"type:varchar(32)"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for UserCompany
func (UserCompany) TableName() string {
	return "user_companies"
}
