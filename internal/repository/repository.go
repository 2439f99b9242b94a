package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NAKAZUKA/fin-report-bot/internal/model"
)

// Repository wraps all bookkeeping store access
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// IsEventProcessed reports whether an event uid is already in the processed set
func (r *Repository) IsEventProcessed(eventUID string) (bool, error) {
	var processed model.ProcessedEvent
	result := r.db.Where("event_uid = ?", eventUID).First(&processed)
	if result.Error == nil {
		return true, nil
	}
	if result.Error == gorm.ErrRecordNotFound {
		return false, nil
	}
	return false, fmt.Errorf("database error checking processed event: %w", result.Error)
}

// MarkEventProcessed records an event uid in the processed set.
// A duplicate insert is a no-op, not an error.
func (r *Repository) MarkEventProcessed(eventUID string) error {
	processed := model.ProcessedEvent{
		EventUID:    eventUID,
		ProcessedAt: time.Now(),
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&processed)
	if result.Error != nil {
		return fmt.Errorf("failed to mark event as processed: %w", result.Error)
	}
	return nil
}

// SaveReport persists the durable business record for a relayed file.
// Insert is idempotent on event uid.
func (r *Repository) SaveReport(report *model.Report) error {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(report)
	if result.Error != nil {
		return fmt.Errorf("failed to save report: %w", result.Error)
	}
	return nil
}

// SaveMessage persists the durable business record for a relayed message.
// Insert is idempotent on event uid.
func (r *Repository) SaveMessage(message *model.MessageRecord) error {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(message)
	if result.Error != nil {
		return fmt.Errorf("failed to save message: %w", result.Error)
	}
	return nil
}

// Subscribers returns all users with an active subscription
func (r *Repository) Subscribers() ([]model.User, error) {
	var users []model.User
	result := r.db.Where("is_subscribed = ?", true).Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get subscribers: %w", result.Error)
	}
	return users, nil
}

// EnsureUser creates or updates a user row
func (r *Repository) EnsureUser(userID int64, fullName string, subscribed bool) error {
	user := model.User{
		UserID:       userID,
		FullName:     fullName,
		IsSubscribed: subscribed,
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "is_subscribed"}),
	}).Create(&user)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert user: %w", result.Error)
	}
	return nil
}

// CompaniesFor returns the companies watched by a user
func (r *Repository) CompaniesFor(userID int64) ([]model.UserCompany, error) {
	var companies []model.UserCompany
	result := r.db.Where("user_id = ?", userID).Order("created_at").Find(&companies)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get user companies: %w", result.Error)
	}
	return companies, nil
}

// AddUserCompany adds a company watch for a user. Duplicate watches are a no-op.
func (r *Repository) AddUserCompany(userID int64, inn, name, ogrn string) error {
	company := model.UserCompany{
		UserID:      userID,
		INN:         inn,
		CompanyName: name,
		OGRN:        ogrn,
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&company)
	if result.Error != nil {
		return fmt.Errorf("failed to add user company: %w", result.Error)
	}
	return nil
}

// RemoveUserCompany removes a company watch for a user
func (r *Repository) RemoveUserCompany(userID int64, inn string) error {
	result := r.db.Where("user_id = ? AND inn = ?", userID, inn).Delete(&model.UserCompany{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove user company: %w", result.Error)
	}
	return nil
}

// RecentReports returns the most recent report records for the audit API
func (r *Repository) RecentReports(limit int) ([]model.Report, error) {
	var reports []model.Report
	result := r.db.Order("created_at desc").Limit(limit).Find(&reports)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get reports: %w", result.Error)
	}
	return reports, nil
}

// RecentMessages returns the most recent message records for the audit API
func (r *Repository) RecentMessages(limit int) ([]model.MessageRecord, error) {
	var messages []model.MessageRecord
	result := r.db.Order("created_at desc").Limit(limit).Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get messages: %w", result.Error)
	}
	return messages, nil
}
