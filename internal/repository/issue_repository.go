package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uwazi254/uwazi-api/internal/models"
)

const issueColumns = `id, title, description, category, severity, status, county, constituency, ward, location, latitude, longitude, submitted_by, anonymous, upvotes, downvotes, ai_confidence, ai_tags, created_at, updated_at`

// severityRank orders severities by urgency instead of alphabetically.
const severityRank = `CASE severity WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

// IssueRepository is the central entity store for issues.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository creates a new instance of IssueRepository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create inserts a new issue.
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	if issue.Severity == "" {
		issue.Severity = models.SeverityMedium
	}
	if issue.Status == "" {
		issue.Status = models.StatusOpen
	}
	if issue.AITags == nil {
		issue.AITags = json.RawMessage(`[]`)
	}

	const query = `INSERT INTO issues (id, title, description, category, severity, status, county, constituency, ward, location, latitude, longitude, submitted_by, anonymous, upvotes, downvotes, ai_confidence, ai_tags, created_at, updated_at)
		VALUES (:id, :title, :description, :category, :severity, :status, :county, :constituency, :ward, :location, :latitude, :longitude, :submitted_by, :anonymous, :upvotes, :downvotes, :ai_confidence, :ai_tags, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, issue); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// FindByID returns an issue by identifier.
func (r *IssueRepository) FindByID(ctx context.Context, id string) (*models.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id = $1 LIMIT 1`, issueColumns)
	var issue models.Issue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find issue by id: %w", err)
	}
	return &issue, nil
}

// List returns issues matching the filter with total count. All filters are
// optional and conjunctive; free-text search is an OR across text fields.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	baseQuery := `FROM issues WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)+1))
		args = append(args, filter.Severity)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.County != "" {
		conditions = append(conditions, fmt.Sprintf("county ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.County+"%")
	}
	if filter.Constituency != "" {
		conditions = append(conditions, fmt.Sprintf("constituency ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Constituency+"%")
	}
	if filter.Ward != "" {
		conditions = append(conditions, fmt.Sprintf("ward ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Ward+"%")
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Anonymous != nil {
		conditions = append(conditions, fmt.Sprintf("anonymous = $%d", len(args)+1))
		args = append(args, *filter.Anonymous)
	}
	if filter.SubmittedBy != "" {
		conditions = append(conditions, fmt.Sprintf("submitted_by = $%d", len(args)+1))
		args = append(args, filter.SubmittedBy)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR county ILIKE $%d OR constituency ILIKE $%d OR ward ILIKE $%d)", idx, idx, idx, idx, idx))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	orderExpr := orderExpression(filter.SortBy, filter.SortOrder)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", issueColumns, baseQuery, orderExpr, pageSize, offset)

	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	return issues, total, nil
}

func orderExpression(sortBy, sortOrder string) string {
	column := "created_at"
	switch sortBy {
	case "created_at", "updated_at", "upvotes":
		column = sortBy
	case "severity":
		column = severityRank
	}

	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	return column + " " + order
}

// Update persists the content fields of an issue. Status and vote counters are
// deliberately excluded: those change only through moderation and voting.
func (r *IssueRepository) Update(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	const query = `UPDATE issues SET title = :title, description = :description, category = :category, severity = :severity, county = :county, constituency = :constituency, ward = :ward, location = :location, latitude = :latitude, longitude = :longitude, anonymous = :anonymous, ai_confidence = :ai_confidence, ai_tags = :ai_tags, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, issue); err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	return nil
}

// SetStatus changes the lifecycle status of an issue.
func (r *IssueRepository) SetStatus(ctx context.Context, id string, status models.IssueStatus) error {
	const query = `UPDATE issues SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set issue status: %w", err)
	}
	return nil
}

// Delete removes an issue. Images, votes, notes, responses and updates go with
// it through the foreign-key cascade.
func (r *IssueRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM issues WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	return nil
}

// AddImage attaches an image record to an issue.
func (r *IssueRepository) AddImage(ctx context.Context, image *models.IssueImage) error {
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	if image.UploadedAt.IsZero() {
		image.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO issue_images (id, issue_id, url, caption, uploaded_at) VALUES (:id, :issue_id, :url, :caption, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, image); err != nil {
		return fmt.Errorf("add issue image: %w", err)
	}
	return nil
}

// ListImages returns the images attached to an issue.
func (r *IssueRepository) ListImages(ctx context.Context, issueID string) ([]models.IssueImage, error) {
	const query = `SELECT id, issue_id, url, caption, uploaded_at FROM issue_images WHERE issue_id = $1 ORDER BY uploaded_at`
	var images []models.IssueImage
	if err := r.db.SelectContext(ctx, &images, query, issueID); err != nil {
		return nil, fmt.Errorf("list issue images: %w", err)
	}
	return images, nil
}
