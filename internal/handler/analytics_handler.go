package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/uwazi254/uwazi-api/internal/middleware"
	"github.com/uwazi254/uwazi-api/internal/models"
	"github.com/uwazi254/uwazi-api/internal/service"
	"github.com/uwazi254/uwazi-api/pkg/response"
)

type analyticsService interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, bool, error)
	CountyBreakdown(ctx context.Context, county string) ([]models.CountyStats, error)
	CategoryBreakdown(ctx context.Context, category string) ([]models.CategoryStats, error)
	Trends(ctx context.Context, days int) ([]models.DailyTrend, error)
}

type issueExporter interface {
	Issues(ctx context.Context, filter models.IssueFilter, format service.ExportFormat) (*service.ExportResult, error)
}

// AnalyticsHandler wires the read-only aggregation endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
	exports   issueExporter
	metrics   *service.MetricsService
}

// NewAnalyticsHandler creates a new handler. Metrics may be nil.
func NewAnalyticsHandler(analytics analyticsService, exports issueExporter, metrics *service.MetricsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, exports: exports, metrics: metrics}
}

// Dashboard godoc
// @Summary Aggregate dashboard statistics
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	stats, cached, err := h.analytics.DashboardStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	if h.metrics != nil {
		h.metrics.CountCacheLookup(cached)
	}

	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Counties godoc
// @Summary Per-county issue aggregates
// @Tags Analytics
// @Produce json
// @Param county query string false "County name filter"
// @Success 200 {object} response.Envelope
// @Router /analytics/counties [get]
func (h *AnalyticsHandler) Counties(c *gin.Context) {
	stats, err := h.analytics.CountyBreakdown(c.Request.Context(), c.Query("county"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// Categories godoc
// @Summary Per-category issue aggregates
// @Tags Analytics
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {object} response.Envelope
// @Router /analytics/categories [get]
func (h *AnalyticsHandler) Categories(c *gin.Context) {
	stats, err := h.analytics.CategoryBreakdown(c.Request.Context(), c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// Trends godoc
// @Summary Daily created and resolved counts
// @Tags Analytics
// @Produce json
// @Param days query int false "Trailing window in days, default 30, max 365"
// @Success 200 {object} response.Envelope
// @Router /analytics/trends [get]
func (h *AnalyticsHandler) Trends(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	trends, err := h.analytics.Trends(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, trends, nil)
}

// Export godoc
// @Summary Download the filtered issue register
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf, default csv"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	result, err := h.exports.Issues(c.Request.Context(), parseIssueFilter(c), service.ExportFormat(format))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
