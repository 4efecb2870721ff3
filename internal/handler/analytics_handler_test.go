package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwazi254/uwazi-api/internal/models"
	"github.com/uwazi254/uwazi-api/internal/service"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type fakeAnalyticsSrv struct {
	stats    *models.DashboardStats
	cached   bool
	err      error
	lastDays int
}

func (f *fakeAnalyticsSrv) DashboardStats(context.Context) (*models.DashboardStats, bool, error) {
	return f.stats, f.cached, f.err
}

func (f *fakeAnalyticsSrv) CountyBreakdown(_ context.Context, county string) ([]models.CountyStats, error) {
	return []models.CountyStats{{County: "Nairobi", Total: 12}}, f.err
}

func (f *fakeAnalyticsSrv) CategoryBreakdown(_ context.Context, category string) ([]models.CategoryStats, error) {
	return []models.CategoryStats{{Category: "water", Total: 7}}, f.err
}

func (f *fakeAnalyticsSrv) Trends(_ context.Context, days int) ([]models.DailyTrend, error) {
	f.lastDays = days
	return []models.DailyTrend{}, f.err
}

type fakeExportSrv struct {
	result     *service.ExportResult
	err        error
	lastFormat service.ExportFormat
}

func (f *fakeExportSrv) Issues(_ context.Context, filter models.IssueFilter, format service.ExportFormat) (*service.ExportResult, error) {
	f.lastFormat = format
	return f.result, f.err
}

func TestAnalyticsHandlerDashboardReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{
		stats:  &models.DashboardStats{TotalIssues: 42, ResolutionRate: 50},
		cached: true,
	}, &fakeExportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil)

	handler.Dashboard(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]interface{} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(42), envelope.Data["total_issues"])
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestAnalyticsHandlerDashboardCountsCacheLookups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	srv := &fakeAnalyticsSrv{stats: &models.DashboardStats{}}
	handler := NewAnalyticsHandler(srv, &fakeExportSrv{}, metrics)

	for _, cached := range []bool{false, true} {
		srv.cached = cached
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil)
		handler.Dashboard(c)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "cache_hits_total 1")
	assert.Contains(t, scrape.Body.String(), "cache_misses_total 1")
}

func TestAnalyticsHandlerTrendsForwardsWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{}
	handler := NewAnalyticsHandler(srv, &fakeExportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/trends?days=90", nil)

	handler.Trends(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90, srv.lastDays)
}

func TestAnalyticsHandlerExportSetsDisposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exports := &fakeExportSrv{result: &service.ExportResult{
		FileName:    "issues-20260615-123045.csv",
		ContentType: "text/csv",
		Data:        []byte("ID,Title\n"),
	}}
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{}, exports, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/export?format=csv", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ExportFormat("csv"), exports.lastFormat)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "issues-20260615-123045.csv")
}

func TestAnalyticsHandlerExportRejectsBadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exports := &fakeExportSrv{err: appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")}
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{}, exports, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/analytics/export?format=xlsx", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
