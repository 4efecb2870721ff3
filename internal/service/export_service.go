package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
	"github.com/uwazi254/uwazi-api/pkg/export"
)

const exportPageSize = 100

// ExportFormat selects the download encoding.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type exportIssueLister interface {
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
}

// ExportResult is a rendered issue register ready to stream.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders filtered issue registers as CSV or PDF downloads.
type ExportService struct {
	issues exportIssueLister
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService creates an instance of ExportService.
func NewExportService(issues exportIssueLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{issues: issues, logger: logger, now: time.Now}
}

// Issues renders the full filtered issue set, paging through the repository
// until exhausted.
func (s *ExportService) Issues(ctx context.Context, filter models.IssueFilter, format ExportFormat) (*ExportResult, error) {
	format = ExportFormat(strings.ToLower(string(format)))
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	filter.Page = 1
	filter.PageSize = exportPageSize

	var all []models.Issue
	for {
		page, total, err := s.issues.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issues for export")
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	register := export.Register{
		Title:   "Issue Register",
		Columns: []string{"ID", "Title", "Category", "Severity", "Status", "County", "Constituency", "Ward", "Upvotes", "Downvotes", "Created"},
		Rows:    make([][]string, 0, len(all)),
	}
	for _, issue := range all {
		register.Rows = append(register.Rows, []string{
			issue.ID,
			issue.Title,
			string(issue.Category),
			string(issue.Severity),
			string(issue.Status),
			issue.County,
			issue.Constituency,
			issue.Ward,
			strconv.Itoa(issue.Upvotes),
			strconv.Itoa(issue.Downvotes),
			issue.CreatedAt.Format("2006-01-02"),
		})
	}

	stamp := s.now().UTC().Format("20060102-150405")
	switch format {
	case FormatPDF:
		data, err := register.PDF()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("issues-%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		data, err := register.CSV()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("issues-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	}
}
