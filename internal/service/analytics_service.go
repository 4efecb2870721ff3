package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/models"
	"github.com/uwazi254/uwazi-api/internal/repository"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

const (
	dashboardCacheKey   = "analytics:dashboard"
	monthlyTrendWindow  = 6
	recentActivityLimit = 10
)

type analyticsRepository interface {
	StatusTotals(ctx context.Context) (*models.StatusTotals, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
	CountyCounts(ctx context.Context) (map[string]int, error)
	SeverityCounts(ctx context.Context) (map[string]int, error)
	MonthlyCreated(ctx context.Context, since time.Time) ([]repository.MonthlyBucket, error)
	RecentActivity(ctx context.Context, limit int) ([]models.RecentActivity, error)
	CountyStats(ctx context.Context, county string) ([]models.CountyStats, error)
	CategoryStats(ctx context.Context, category string) ([]models.CategoryStats, error)
	DailyCreated(ctx context.Context, from, to time.Time) ([]repository.DailyBucket, error)
	DailyResolved(ctx context.Context, from, to time.Time) ([]repository.DailyBucket, error)
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AnalyticsConfig controls dashboard caching.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AnalyticsService assembles the read-only aggregations. The dashboard is
// served from Redis when caching is enabled; everything else is computed per
// request.
type AnalyticsService struct {
	repo   analyticsRepository
	cache  analyticsCache
	config AnalyticsConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyticsService creates an instance of AnalyticsService. Cache may be
// nil, which disables caching regardless of config.
func NewAnalyticsService(repo analyticsRepository, cache analyticsCache, config AnalyticsConfig, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:   repo,
		cache:  cache,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// DashboardStats returns the aggregate dashboard payload. The boolean
// reports whether the payload came from cache.
func (s *AnalyticsService) DashboardStats(ctx context.Context) (*models.DashboardStats, bool, error) {
	if s.cacheEnabled() {
		var cached models.DashboardStats
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	stats, err := s.buildDashboard(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.config.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, false, nil
}

func (s *AnalyticsService) buildDashboard(ctx context.Context) (*models.DashboardStats, error) {
	totals, err := s.repo.StatusTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status totals")
	}

	categories, err := s.repo.CategoryCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category breakdown")
	}
	counties, err := s.repo.CountyCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load county breakdown")
	}
	severities, err := s.repo.SeverityCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load severity breakdown")
	}

	since := monthStart(s.now().UTC()).AddDate(0, -(monthlyTrendWindow - 1), 0)
	buckets, err := s.repo.MonthlyCreated(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load monthly trends")
	}

	recent, err := s.repo.RecentActivity(ctx, recentActivityLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent activity")
	}
	if recent == nil {
		recent = []models.RecentActivity{}
	}

	return &models.DashboardStats{
		TotalIssues:       totals.Total,
		OpenIssues:        totals.Open,
		PendingIssues:     totals.Pending,
		ResolvedIssues:    totals.Resolved,
		ClosedIssues:      totals.Closed,
		ResolutionRate:    resolutionRate(totals.Resolved, totals.Total),
		CategoryBreakdown: categories,
		CountyBreakdown:   counties,
		SeverityBreakdown: severities,
		MonthlyTrends:     s.fillMonths(buckets),
		RecentActivity:    recent,
	}, nil
}

// CountyBreakdown returns per-county status aggregates, optionally filtered by
// a county name substring.
func (s *AnalyticsService) CountyBreakdown(ctx context.Context, county string) ([]models.CountyStats, error) {
	stats, err := s.repo.CountyStats(ctx, county)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load county stats")
	}
	if stats == nil {
		stats = []models.CountyStats{}
	}
	return stats, nil
}

// CategoryBreakdown returns per-category status and severity aggregates.
func (s *AnalyticsService) CategoryBreakdown(ctx context.Context, category string) ([]models.CategoryStats, error) {
	stats, err := s.repo.CategoryStats(ctx, category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category stats")
	}
	if stats == nil {
		stats = []models.CategoryStats{}
	}
	return stats, nil
}

// Trends returns one bucket per day from days ago through today, both ends
// included, zero-filled for days with no activity. Days are clamped to
// [1, 365] and default to 30.
func (s *AnalyticsService) Trends(ctx context.Context, days int) ([]models.DailyTrend, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	today := dayStart(s.now().UTC())
	from := today.AddDate(0, 0, -days)

	created, err := s.repo.DailyCreated(ctx, from, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily created counts")
	}
	resolved, err := s.repo.DailyResolved(ctx, from, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily resolved counts")
	}

	createdByDay := bucketMap(created)
	resolvedByDay := bucketMap(resolved)

	trends := make([]models.DailyTrend, 0, days+1)
	for day := from; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		trends = append(trends, models.DailyTrend{
			Date:     key,
			Issues:   createdByDay[key],
			Resolved: resolvedByDay[key],
		})
	}
	return trends, nil
}

// InvalidateDashboard drops the cached dashboard after a write that changes
// the aggregates.
func (s *AnalyticsService) InvalidateDashboard(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *AnalyticsService) cacheEnabled() bool {
	return s.cache != nil && s.config.CacheEnabled
}

// fillMonths projects raw buckets onto a fixed six-month series so the chart
// always has the same shape.
func (s *AnalyticsService) fillMonths(buckets []repository.MonthlyBucket) []models.MonthlyTrend {
	byMonth := make(map[string]repository.MonthlyBucket, len(buckets))
	for _, b := range buckets {
		byMonth[b.Month.UTC().Format("2006-01")] = b
	}

	start := monthStart(s.now().UTC()).AddDate(0, -(monthlyTrendWindow - 1), 0)
	trends := make([]models.MonthlyTrend, 0, monthlyTrendWindow)
	for i := 0; i < monthlyTrendWindow; i++ {
		month := start.AddDate(0, i, 0)
		key := month.Format("2006-01")
		bucket := byMonth[key]
		trends = append(trends, models.MonthlyTrend{
			Month:    month.Format("January 2006"),
			Issues:   bucket.Issues,
			Resolved: bucket.Resolved,
		})
	}
	return trends
}

func resolutionRate(resolved, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(resolved)/float64(total)*10000) / 100
}

func bucketMap(buckets []repository.DailyBucket) map[string]int {
	m := make(map[string]int, len(buckets))
	for _, b := range buckets {
		m[b.Day.UTC().Format("2006-01-02")] = b.Count
	}
	return m
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
