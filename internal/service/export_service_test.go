package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type mockExportLister struct {
	issues []models.Issue
	pages  []int
}

func (m *mockExportLister) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	m.pages = append(m.pages, filter.Page)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(m.issues) {
		return nil, len(m.issues), nil
	}
	end := start + filter.PageSize
	if end > len(m.issues) {
		end = len(m.issues)
	}
	return m.issues[start:end], len(m.issues), nil
}

func exportIssue(i int) models.Issue {
	return models.Issue{
		ID:           "issue-" + string(rune('a'+i)),
		Title:        "Blocked drainage",
		Category:     models.CategoryWater,
		Severity:     models.SeverityHigh,
		Status:       models.StatusOpen,
		County:       "Nairobi",
		Constituency: "Westlands",
		Ward:         "Parklands",
		Upvotes:      4,
		Downvotes:    1,
		CreatedAt:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestExportServiceCSV(t *testing.T) {
	lister := &mockExportLister{issues: []models.Issue{exportIssue(0), exportIssue(1)}}
	svc := NewExportService(lister, nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 12, 30, 45, 0, time.UTC) }

	result, err := svc.Issues(context.Background(), models.IssueFilter{}, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "issues-20260615-123045.csv", result.FileName)
	assert.Equal(t, "text/csv", result.ContentType)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "County")
	assert.Contains(t, lines[1], "Blocked drainage")
	assert.Contains(t, lines[1], "2026-03-10")
}

func TestExportServicePagesThroughAllIssues(t *testing.T) {
	issues := make([]models.Issue, exportPageSize+5)
	for i := range issues {
		issues[i] = exportIssue(0)
	}
	lister := &mockExportLister{issues: issues}
	svc := NewExportService(lister, nil)

	result, err := svc.Issues(context.Background(), models.IssueFilter{}, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, lister.pages)
	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	assert.Len(t, lines, exportPageSize+6)
}

func TestExportServicePDF(t *testing.T) {
	lister := &mockExportLister{issues: []models.Issue{exportIssue(0)}}
	svc := NewExportService(lister, nil)

	result, err := svc.Issues(context.Background(), models.IssueFilter{}, "PDF")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&mockExportLister{}, nil)

	_, err := svc.Issues(context.Background(), models.IssueFilter{}, "xlsx")

	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}
