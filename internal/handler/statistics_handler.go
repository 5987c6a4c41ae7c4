package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/lms-enroll-api/internal/service"
	"github.com/campuskit/lms-enroll-api/pkg/response"
)

// StatisticsHandler exposes the completed-course statistics read path.
type StatisticsHandler struct {
	statistics *service.StatisticsService
}

// NewStatisticsHandler constructs StatisticsHandler.
func NewStatisticsHandler(statistics *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statistics: statistics}
}

// Get godoc
// @Summary Get enrollment statistics
// @Tags Statistics
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/statistics [get]
func (h *StatisticsHandler) Get(c *gin.Context) {
	stats, err := h.statistics.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportPDF godoc
// @Summary Export enrollment statistics as PDF
// @Tags Statistics
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Success 200 {string} string "PDF payload"
// @Router /enrollments/{id}/statistics/export [get]
func (h *StatisticsHandler) ExportPDF(c *gin.Context) {
	pdf, filename, err := h.statistics.ExportPDF(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
