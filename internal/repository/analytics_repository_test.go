package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyticsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAnalyticsRepositoryStatusTotals(t *testing.T) {
	db, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	rows := sqlmock.NewRows([]string{"total", "open", "pending", "resolved", "closed"}).
		AddRow(10, 4, 2, 3, 1)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total").WillReturnRows(rows)

	totals, err := repo.StatusTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, totals.Total)
	assert.Equal(t, 3, totals.Resolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryCategoryCounts(t *testing.T) {
	db, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	rows := sqlmock.NewRows([]string{"key", "count"}).
		AddRow("roads", 5).
		AddRow("water", 2)
	mock.ExpectQuery("SELECT category AS key, COUNT\\(\\*\\) AS count FROM issues GROUP BY category").
		WillReturnRows(rows)

	counts, err := repo.CategoryCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"roads": 5, "water": 2}, counts)
}

func TestAnalyticsRepositoryCountyStatsFilter(t *testing.T) {
	db, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	rows := sqlmock.NewRows([]string{"county", "total", "resolved", "pending", "open"}).
		AddRow("Nairobi", 7, 2, 1, 4)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE county ILIKE $1 GROUP BY county ORDER BY total DESC")).
		WithArgs("%nairo%").
		WillReturnRows(rows)

	stats, err := repo.CountyStats(context.Background(), "nairo")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Nairobi", stats[0].County)
	assert.Equal(t, 7, stats[0].Total)
}

func TestAnalyticsRepositoryDailyCreated(t *testing.T) {
	db, mock, cleanup := newAnalyticsRepoMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"day", "count"}).AddRow(day, 3)
	mock.ExpectQuery("SELECT created_at::date AS day").
		WithArgs(day, day.AddDate(0, 0, 1)).
		WillReturnRows(rows)

	buckets, err := repo.DailyCreated(context.Background(), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 3, buckets[0].Count)
}
