package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uwazi254/uwazi-api/internal/models"
)

// ModerationRepository stores admin responses, internal notes and progress
// updates attached to issues.
type ModerationRepository struct {
	db *sqlx.DB
}

// NewModerationRepository creates a new instance of ModerationRepository.
func NewModerationRepository(db *sqlx.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

// ReplaceResponse swaps the single public reply for an issue. Any prior
// response is discarded, not versioned.
func (r *ModerationRepository) ReplaceResponse(ctx context.Context, resp *models.AdminResponse) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	resp.CreatedAt = now
	resp.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin response tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM admin_responses WHERE issue_id = $1`, resp.IssueID); err != nil {
		return fmt.Errorf("discard prior response: %w", err)
	}

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO admin_responses (id, issue_id, message, responded_by, is_public, created_at, updated_at)
		VALUES (:id, :issue_id, :message, :responded_by, :is_public, :created_at, :updated_at)`, resp); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit response tx: %w", err)
	}
	return nil
}

// FindResponse returns the issue's admin response, if present.
func (r *ModerationRepository) FindResponse(ctx context.Context, issueID string) (*models.AdminResponse, error) {
	const query = `SELECT id, issue_id, message, responded_by, is_public, created_at, updated_at FROM admin_responses WHERE issue_id = $1 LIMIT 1`
	var resp models.AdminResponse
	if err := r.db.GetContext(ctx, &resp, query, issueID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin response: %w", err)
	}
	return &resp, nil
}

// AddNote appends a moderator-only annotation.
func (r *ModerationRepository) AddNote(ctx context.Context, note *models.InternalNote) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO internal_notes (id, issue_id, note, added_by, created_at) VALUES (:id, :issue_id, :note, :added_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("add internal note: %w", err)
	}
	return nil
}

// ListNotes returns an issue's internal notes, newest first.
func (r *ModerationRepository) ListNotes(ctx context.Context, issueID string) ([]models.InternalNote, error) {
	const query = `SELECT id, issue_id, note, added_by, created_at FROM internal_notes WHERE issue_id = $1 ORDER BY created_at DESC`
	var notes []models.InternalNote
	if err := r.db.SelectContext(ctx, &notes, query, issueID); err != nil {
		return nil, fmt.Errorf("list internal notes: %w", err)
	}
	return notes, nil
}

// AddUpdate appends a progress update entry.
func (r *ModerationRepository) AddUpdate(ctx context.Context, update *models.IssueUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO issue_updates (id, issue_id, title, description, updated_by, is_public, created_at) VALUES (:id, :issue_id, :title, :description, :updated_by, :is_public, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, update); err != nil {
		return fmt.Errorf("add issue update: %w", err)
	}
	return nil
}

// ListUpdates returns an issue's progress updates, newest first. When
// publicOnly is set, private entries are excluded.
func (r *ModerationRepository) ListUpdates(ctx context.Context, issueID string, publicOnly bool) ([]models.IssueUpdate, error) {
	query := `SELECT id, issue_id, title, description, updated_by, is_public, created_at FROM issue_updates WHERE issue_id = $1`
	if publicOnly {
		query += ` AND is_public = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	var updates []models.IssueUpdate
	if err := r.db.SelectContext(ctx, &updates, query, issueID); err != nil {
		return nil, fmt.Errorf("list issue updates: %w", err)
	}
	return updates, nil
}
