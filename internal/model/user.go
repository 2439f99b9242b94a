package model

import (
	"time"
)

// User represents a Telegram user known to the bot
type User struct {
	UserID       int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	FullName     string    `json:"full_name" gorm:"type:varchar(255)"`
	IsSubscribed bool      `json:"is_subscribed" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
