package handlers

import (
	"gorm.io/gorm"

	"github.com/NAKAZUKA/fin-report-bot/internal/metrics"
	"github.com/NAKAZUKA/fin-report-bot/internal/repository"
	"github.com/NAKAZUKA/fin-report-bot/internal/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	repo      *repository.Repository
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, repo *repository.Repository, s *scheduler.Scheduler, m *metrics.Metrics) *Handlers {
	return &Handlers{db: db, repo: repo, scheduler: s, metrics: m}
}
