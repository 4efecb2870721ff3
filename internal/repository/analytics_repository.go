package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/uwazi254/uwazi-api/internal/models"
)

// AnalyticsRepository exposes read-only aggregation queries over issues. It
// never mutates issue rows.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// StatusTotals counts issues per lifecycle status in a single pass.
func (r *AnalyticsRepository) StatusTotals(ctx context.Context) (*models.StatusTotals, error) {
	const query = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'open') AS open,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'resolved') AS resolved,
		COUNT(*) FILTER (WHERE status = 'closed') AS closed
		FROM issues`

	var row struct {
		Total    int `db:"total"`
		Open     int `db:"open"`
		Pending  int `db:"pending"`
		Resolved int `db:"resolved"`
		Closed   int `db:"closed"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("query status totals: %w", err)
	}
	return &models.StatusTotals{
		Total:    row.Total,
		Open:     row.Open,
		Pending:  row.Pending,
		Resolved: row.Resolved,
		Closed:   row.Closed,
	}, nil
}

type breakdownRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func (r *AnalyticsRepository) breakdown(ctx context.Context, column string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM issues GROUP BY %s`, column, column)
	var rows []breakdownRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query %s breakdown: %w", column, err)
	}
	result := make(map[string]int, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Count
	}
	return result, nil
}

// CategoryCounts groups issue counts by category.
func (r *AnalyticsRepository) CategoryCounts(ctx context.Context) (map[string]int, error) {
	return r.breakdown(ctx, "category")
}

// CountyCounts groups issue counts by county.
func (r *AnalyticsRepository) CountyCounts(ctx context.Context) (map[string]int, error) {
	return r.breakdown(ctx, "county")
}

// SeverityCounts groups issue counts by severity.
func (r *AnalyticsRepository) SeverityCounts(ctx context.Context) (map[string]int, error) {
	return r.breakdown(ctx, "severity")
}

// MonthlyBucket is a raw month aggregate keyed by the creation month.
type MonthlyBucket struct {
	Month    time.Time `db:"month"`
	Issues   int       `db:"issues"`
	Resolved int       `db:"resolved"`
}

// MonthlyCreated counts issues created per calendar month since the given
// instant. Resolved counts issues created in the month that are currently
// resolved, keyed off creation month rather than resolution month.
func (r *AnalyticsRepository) MonthlyCreated(ctx context.Context, since time.Time) ([]MonthlyBucket, error) {
	const query = `SELECT date_trunc('month', created_at) AS month,
		COUNT(*) AS issues,
		COUNT(*) FILTER (WHERE status = 'resolved') AS resolved
		FROM issues WHERE created_at >= $1
		GROUP BY month ORDER BY month`

	var buckets []MonthlyBucket
	if err := r.db.SelectContext(ctx, &buckets, query, since); err != nil {
		return nil, fmt.Errorf("query monthly buckets: %w", err)
	}
	return buckets, nil
}

// RecentActivity returns the most recently updated issues, newest first.
func (r *AnalyticsRepository) RecentActivity(ctx context.Context, limit int) ([]models.RecentActivity, error) {
	const query = `SELECT id, title, status, county, ward, category, updated_at FROM issues ORDER BY updated_at DESC LIMIT $1`
	var activity []models.RecentActivity
	if err := r.db.SelectContext(ctx, &activity, query, limit); err != nil {
		return nil, fmt.Errorf("query recent activity: %w", err)
	}
	return activity, nil
}

// CountyStats aggregates per-county status counts, optionally pre-filtered by
// a case-insensitive substring match, ordered by total descending.
func (r *AnalyticsRepository) CountyStats(ctx context.Context, county string) ([]models.CountyStats, error) {
	query := `SELECT county,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'resolved') AS resolved,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'open') AS open
		FROM issues`
	var args []interface{}
	if county != "" {
		query += ` WHERE county ILIKE $1`
		args = append(args, "%"+county+"%")
	}
	query += ` GROUP BY county ORDER BY total DESC`

	var stats []models.CountyStats
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("query county stats: %w", err)
	}
	return stats, nil
}

// CategoryStats aggregates per-category status and severity counts, ordered by
// total descending.
func (r *AnalyticsRepository) CategoryStats(ctx context.Context, category string) ([]models.CategoryStats, error) {
	query := `SELECT category,
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'resolved') AS resolved,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'open') AS open,
		COUNT(*) FILTER (WHERE severity = 'critical') AS critical,
		COUNT(*) FILTER (WHERE severity = 'high') AS high
		FROM issues`
	var args []interface{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` GROUP BY category ORDER BY total DESC`

	var stats []models.CategoryStats
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("query category stats: %w", err)
	}
	return stats, nil
}

// DailyBucket is a raw per-day count.
type DailyBucket struct {
	Day   time.Time `db:"day"`
	Count int       `db:"count"`
}

// DailyCreated counts issues created per day within the window.
func (r *AnalyticsRepository) DailyCreated(ctx context.Context, from, to time.Time) ([]DailyBucket, error) {
	const query = `SELECT created_at::date AS day, COUNT(*) AS count FROM issues WHERE created_at::date BETWEEN $1 AND $2 GROUP BY day ORDER BY day`
	var buckets []DailyBucket
	if err := r.db.SelectContext(ctx, &buckets, query, from, to); err != nil {
		return nil, fmt.Errorf("query daily created: %w", err)
	}
	return buckets, nil
}

// DailyResolved counts currently resolved issues whose last update falls on
// each day within the window.
func (r *AnalyticsRepository) DailyResolved(ctx context.Context, from, to time.Time) ([]DailyBucket, error) {
	const query = `SELECT updated_at::date AS day, COUNT(*) AS count FROM issues WHERE status = 'resolved' AND updated_at::date BETWEEN $1 AND $2 GROUP BY day ORDER BY day`
	var buckets []DailyBucket
	if err := r.db.SelectContext(ctx, &buckets, query, from, to); err != nil {
		return nil, fmt.Errorf("query daily resolved: %w", err)
	}
	return buckets, nil
}
