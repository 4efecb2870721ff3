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

// VoteRepository enforces the one-vote-per-(issue,user) invariant and keeps
// the issue's aggregate counters consistent with the vote rows.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository creates a new instance of VoteRepository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Find returns the caller's standing vote on an issue, if any.
func (r *VoteRepository) Find(ctx context.Context, issueID, userID string) (*models.IssueVote, error) {
	const query = `SELECT id, issue_id, user_id, vote_type, created_at FROM issue_votes WHERE issue_id = $1 AND user_id = $2 LIMIT 1`
	var vote models.IssueVote
	if err := r.db.GetContext(ctx, &vote, query, issueID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return &vote, nil
}

// Cast applies a vote action atomically. The existing vote row is locked for
// the duration of the transaction so concurrent casts for the same (issue,
// user) pair serialize, and counters are only ever moved by relative deltas so
// concurrent votes from different users cannot lose updates. The issue's
// updated_at is left untouched: a vote is metadata, not content.
func (r *VoteRepository) Cast(ctx context.Context, issueID, userID string, voteType models.VoteType) (models.VoteOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin vote tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing models.IssueVote
	err = tx.GetContext(ctx, &existing,
		`SELECT id, issue_id, user_id, vote_type, created_at FROM issue_votes WHERE issue_id = $1 AND user_id = $2 FOR UPDATE`,
		issueID, userID)

	var outcome models.VoteOutcome
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO issue_votes (id, issue_id, user_id, vote_type, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), issueID, userID, voteType, time.Now().UTC()); err != nil {
			return "", fmt.Errorf("insert vote: %w", err)
		}
		if err := applyDelta(ctx, tx, issueID, voteType, +1); err != nil {
			return "", err
		}
		outcome = models.VoteRecorded

	case err != nil:
		return "", fmt.Errorf("lock vote row: %w", err)

	case existing.VoteType == voteType:
		if _, err := tx.ExecContext(ctx, `DELETE FROM issue_votes WHERE id = $1`, existing.ID); err != nil {
			return "", fmt.Errorf("delete vote: %w", err)
		}
		if err := applyDelta(ctx, tx, issueID, voteType, -1); err != nil {
			return "", err
		}
		outcome = models.VoteRemoved

	default:
		if _, err := tx.ExecContext(ctx, `UPDATE issue_votes SET vote_type = $2 WHERE id = $1`, existing.ID, voteType); err != nil {
			return "", fmt.Errorf("switch vote: %w", err)
		}
		if err := applyDelta(ctx, tx, issueID, voteType, +1); err != nil {
			return "", err
		}
		if err := applyDelta(ctx, tx, issueID, existing.VoteType, -1); err != nil {
			return "", err
		}
		outcome = models.VoteUpdated
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit vote tx: %w", err)
	}
	return outcome, nil
}

func applyDelta(ctx context.Context, tx *sqlx.Tx, issueID string, voteType models.VoteType, delta int) error {
	column := "upvotes"
	if voteType == models.VoteDown {
		column = "downvotes"
	}
	query := fmt.Sprintf(`UPDATE issues SET %s = %s + $2 WHERE id = $1`, column, column)
	if _, err := tx.ExecContext(ctx, query, issueID, delta); err != nil {
		return fmt.Errorf("apply %s delta: %w", column, err)
	}
	return nil
}

// VotesByUser returns the user's standing votes across the given issues.
func (r *VoteRepository) VotesByUser(ctx context.Context, userID string, issueIDs []string) (map[string]models.VoteType, error) {
	if len(issueIDs) == 0 {
		return map[string]models.VoteType{}, nil
	}

	query, args, err := sqlx.In(`SELECT issue_id, vote_type FROM issue_votes WHERE user_id = ? AND issue_id IN (?)`, userID, issueIDs)
	if err != nil {
		return nil, fmt.Errorf("build user votes query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []struct {
		IssueID  string          `db:"issue_id"`
		VoteType models.VoteType `db:"vote_type"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load user votes: %w", err)
	}

	votes := make(map[string]models.VoteType, len(rows))
	for _, row := range rows {
		votes[row.IssueID] = row.VoteType
	}
	return votes, nil
}
