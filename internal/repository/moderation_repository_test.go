package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwazi254/uwazi-api/internal/models"
)

func newModerationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestModerationRepositoryReplaceResponseDiscardsPrior(t *testing.T) {
	db, mock, cleanup := newModerationRepoMock(t)
	defer cleanup()
	repo := NewModerationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admin_responses WHERE issue_id = $1")).
		WithArgs("i1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO admin_responses").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	resp := &models.AdminResponse{IssueID: "i1", Message: "We are on it", RespondedByID: "m1", IsPublic: true}
	require.NoError(t, repo.ReplaceResponse(context.Background(), resp))

	assert.NotEmpty(t, resp.ID)
	assert.False(t, resp.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepositoryReplaceResponseRollsBack(t *testing.T) {
	db, mock, cleanup := newModerationRepoMock(t)
	defer cleanup()
	repo := NewModerationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM admin_responses").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO admin_responses").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceResponse(context.Background(), &models.AdminResponse{IssueID: "i1", Message: "x", RespondedByID: "m1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepositoryListUpdatesPublicOnly(t *testing.T) {
	db, mock, cleanup := newModerationRepoMock(t)
	defer cleanup()
	repo := NewModerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE issue_id = $1 AND is_public = TRUE ORDER BY created_at DESC")).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "issue_id", "title", "description", "updated_by", "is_public", "created_at"}))

	_, err := repo.ListUpdates(context.Background(), "i1", true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepositoryListUpdatesIncludesPrivateForModerators(t *testing.T) {
	db, mock, cleanup := newModerationRepoMock(t)
	defer cleanup()
	repo := NewModerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE issue_id = $1 ORDER BY created_at DESC")).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "issue_id", "title", "description", "updated_by", "is_public", "created_at"}))

	_, err := repo.ListUpdates(context.Background(), "i1", false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepositoryAddNote(t *testing.T) {
	db, mock, cleanup := newModerationRepoMock(t)
	defer cleanup()
	repo := NewModerationRepository(db)

	mock.ExpectExec("INSERT INTO internal_notes").
		WillReturnResult(sqlmock.NewResult(1, 1))

	note := &models.InternalNote{IssueID: "i1", Note: "needs site visit", AddedByID: "m1"}
	require.NoError(t, repo.AddNote(context.Background(), note))
	assert.NotEmpty(t, note.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
