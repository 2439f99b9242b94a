package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NAKAZUKA/fin-report-bot/internal/model"
)

const defaultAuditLimit = 50

// GetReports returns the most recent relayed report records
func (h *Handlers) GetReports(c *gin.Context) {
	reports, err := h.repo.RecentReports(auditLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch reports",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, reports)
}

// GetMessages returns the most recent relayed message records
func (h *Handlers) GetMessages(c *gin.Context) {
	messages, err := h.repo.RecentMessages(auditLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch messages",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// RunCycle triggers one acquisition cycle outside the schedule
func (h *Handlers) RunCycle(c *gin.Context) {
	go h.scheduler.RunOnce()
	c.JSON(http.StatusAccepted, gin.H{"status": "cycle started"})
}

func auditLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditLimit)))
	if err != nil || limit <= 0 || limit > 500 {
		return defaultAuditLimit
	}
	return limit
}
