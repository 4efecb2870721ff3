package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwazi254/uwazi-api/internal/dto"
	"github.com/uwazi254/uwazi-api/internal/middleware"
	"github.com/uwazi254/uwazi-api/internal/models"
	"github.com/uwazi254/uwazi-api/internal/service"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type fakeIssueSrv struct {
	issue      *models.Issue
	issueErr   error
	suggestion *dto.ClassifySuggestion
	suggestErr error

	lastCreate    service.CreateIssueRequest
	lastPatch     service.PatchIssueRequest
	lastSubmitter string
	lastViewer    *models.JWTClaims
	deleted       []string
}

func (f *fakeIssueSrv) Create(_ context.Context, req service.CreateIssueRequest, submitterID string) (*models.Issue, error) {
	f.lastCreate = req
	f.lastSubmitter = submitterID
	return f.issue, f.issueErr
}

func (f *fakeIssueSrv) Get(_ context.Context, id string, viewer *models.JWTClaims) (*models.Issue, error) {
	f.lastViewer = viewer
	return f.issue, f.issueErr
}

func (f *fakeIssueSrv) List(_ context.Context, filter models.IssueFilter, viewer *models.JWTClaims) ([]models.Issue, *models.Pagination, error) {
	f.lastViewer = viewer
	if f.issue == nil {
		return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
	}
	return []models.Issue{*f.issue}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeIssueSrv) MyIssues(ctx context.Context, filter models.IssueFilter, viewer *models.JWTClaims) ([]models.Issue, *models.Pagination, error) {
	return f.List(ctx, filter, viewer)
}

func (f *fakeIssueSrv) Update(_ context.Context, id string, req service.UpdateIssueRequest, actor *models.JWTClaims) (*models.Issue, error) {
	return f.issue, f.issueErr
}

func (f *fakeIssueSrv) Patch(_ context.Context, id string, req service.PatchIssueRequest, actor *models.JWTClaims) (*models.Issue, error) {
	f.lastPatch = req
	return f.issue, f.issueErr
}

func (f *fakeIssueSrv) Delete(_ context.Context, id string, actor *models.JWTClaims) error {
	if f.issueErr != nil {
		return f.issueErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIssueSrv) AttachImage(_ context.Context, issueID, url, caption string, actor *models.JWTClaims) (*models.IssueImage, error) {
	return &models.IssueImage{IssueID: issueID, URL: url, Caption: caption}, f.issueErr
}

func (f *fakeIssueSrv) Categorize(_ context.Context, description string) (*dto.ClassifySuggestion, error) {
	return f.suggestion, f.suggestErr
}

type fakeVoteSrv struct {
	outcome models.VoteOutcome
	err     error

	lastIssueID string
	lastUserID  string
	lastVote    models.VoteType
}

func (f *fakeVoteSrv) Cast(_ context.Context, issueID, userID string, voteType models.VoteType) (models.VoteOutcome, error) {
	f.lastIssueID = issueID
	f.lastUserID = userID
	f.lastVote = voteType
	return f.outcome, f.err
}

func jsonRequest(method, target string, payload interface{}) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestIssueHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewIssueHandler(&fakeIssueSrv{}, &fakeVoteSrv{}, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/issues", map[string]string{"title": "x"})

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueHandlerCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIssueSrv{issue: &models.Issue{ID: "i1", Title: "Burst pipe"}}
	handler := NewIssueHandler(srv, &fakeVoteSrv{}, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/issues", map[string]string{
		"title":        "Burst pipe",
		"description":  "flooding",
		"category":     "water",
		"county":       "Nairobi",
		"constituency": "Westlands",
		"ward":         "Parklands",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", srv.lastSubmitter)
	assert.Equal(t, "Burst pipe", srv.lastCreate.Title)
}

func TestIssueHandlerPatchForwardsOnlyProvidedFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIssueSrv{issue: &models.Issue{ID: "i1", Title: "Burst pipe", Severity: models.IssueSeverity("high")}}
	handler := NewIssueHandler(srv, &fakeVoteSrv{}, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	c.Request = jsonRequest(http.MethodPatch, "/issues/i1", map[string]string{"severity": "high"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})

	handler.Patch(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastPatch.Severity)
	assert.Equal(t, "high", *srv.lastPatch.Severity)
	assert.Nil(t, srv.lastPatch.Title)
	assert.Nil(t, srv.lastPatch.Description)
}

func TestIssueHandlerVoteOutcomeMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	votes := &fakeVoteSrv{outcome: models.VoteRemoved}
	handler := NewIssueHandler(&fakeIssueSrv{}, votes, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/issues/i1/vote", map[string]string{"vote_type": "up"})
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})

	handler.Vote(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Vote removed", envelope.Data["message"])
	assert.Equal(t, "i1", votes.lastIssueID)
	assert.Equal(t, models.VoteUp, votes.lastVote)
}

func TestIssueHandlerVoteRejectsMissingDirection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	votes := &fakeVoteSrv{}
	handler := NewIssueHandler(&fakeIssueSrv{}, votes, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/issues/i1/vote", map[string]string{})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})

	handler.Vote(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, votes.lastIssueID)
}

func TestIssueHandlerGetPropagatesNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIssueSrv{issueErr: appErrors.Clone(appErrors.ErrNotFound, "issue not found")}
	handler := NewIssueHandler(srv, &fakeVoteSrv{}, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/issues/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIssueSrv{}
	handler := NewIssueHandler(srv, &fakeVoteSrv{}, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/issues/i1", nil)
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})

	handler.Delete(c)
	// gin defers writing a body-less status until the engine flushes it;
	// calling the handler directly means we must flush explicitly.
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"i1"}, srv.deleted)
}

func TestIssueHandlerCategorizeUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIssueSrv{suggestErr: appErrors.Clone(appErrors.ErrClassifierUnavailable, "")}
	handler := NewIssueHandler(srv, &fakeVoteSrv{}, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/issues/categorize", map[string]string{"description": "potholes"})

	handler.Categorize(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIssueHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIssueSrv{}
	handler := NewIssueHandler(srv, &fakeVoteSrv{}, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/issues?category=water&status=open&page=2&page_size=5&date_from=2026-01-01", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	filter := parseIssueFilter(c)
	assert.Equal(t, "water", filter.Category)
	assert.Equal(t, "open", filter.Status)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 5, filter.PageSize)
	require.NotNil(t, filter.DateFrom)
	assert.Equal(t, "2026-01-01", filter.DateFrom.Format("2006-01-02"))
}
