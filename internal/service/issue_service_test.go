package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uwazi254/uwazi-api/internal/dto"
	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type mockIssueRepo struct {
	issues  map[string]*models.Issue
	created []*models.Issue
	images  map[string][]models.IssueImage
	deleted []string

	listResult []models.Issue
	listTotal  int
	lastFilter models.IssueFilter
}

func (m *mockIssueRepo) Create(ctx context.Context, issue *models.Issue) error {
	issue.ID = "new-issue"
	m.created = append(m.created, issue)
	return nil
}

func (m *mockIssueRepo) FindByID(ctx context.Context, id string) (*models.Issue, error) {
	if issue, ok := m.issues[id]; ok {
		cp := *issue
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIssueRepo) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	m.lastFilter = filter
	return m.listResult, m.listTotal, nil
}

func (m *mockIssueRepo) Update(ctx context.Context, issue *models.Issue) error {
	m.issues[issue.ID] = issue
	return nil
}

func (m *mockIssueRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIssueRepo) AddImage(ctx context.Context, image *models.IssueImage) error {
	if m.images == nil {
		m.images = map[string][]models.IssueImage{}
	}
	m.images[image.IssueID] = append(m.images[image.IssueID], *image)
	return nil
}

func (m *mockIssueRepo) ListImages(ctx context.Context, issueID string) ([]models.IssueImage, error) {
	return m.images[issueID], nil
}

type mockAttachmentReader struct {
	response *models.AdminResponse
	notes    []models.InternalNote
	updates  []models.IssueUpdate

	lastPublicOnly bool
}

func (m *mockAttachmentReader) FindResponse(ctx context.Context, issueID string) (*models.AdminResponse, error) {
	if m.response == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.response
	return &cp, nil
}

func (m *mockAttachmentReader) ListNotes(ctx context.Context, issueID string) ([]models.InternalNote, error) {
	return m.notes, nil
}

func (m *mockAttachmentReader) ListUpdates(ctx context.Context, issueID string, publicOnly bool) ([]models.IssueUpdate, error) {
	m.lastPublicOnly = publicOnly
	if publicOnly {
		public := make([]models.IssueUpdate, 0, len(m.updates))
		for _, u := range m.updates {
			if u.IsPublic {
				public = append(public, u)
			}
		}
		return public, nil
	}
	return m.updates, nil
}

type mockUserVotes struct {
	votes map[string]models.VoteType
}

func (m *mockUserVotes) Find(ctx context.Context, issueID, userID string) (*models.IssueVote, error) {
	if vt, ok := m.votes[issueID]; ok {
		return &models.IssueVote{IssueID: issueID, UserID: userID, VoteType: vt}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserVotes) VotesByUser(ctx context.Context, userID string, issueIDs []string) (map[string]models.VoteType, error) {
	return m.votes, nil
}

type mockUserInfos struct {
	infos map[string]models.UserInfo
}

func (m *mockUserInfos) InfosByIDs(ctx context.Context, ids []string) (map[string]models.UserInfo, error) {
	result := map[string]models.UserInfo{}
	for _, id := range ids {
		if info, ok := m.infos[id]; ok {
			result[id] = info
		}
	}
	return result, nil
}

type mockClassifier struct {
	suggestion *dto.ClassifySuggestion
	err        error
	calls      int
}

func (m *mockClassifier) Classify(ctx context.Context, description string) (*dto.ClassifySuggestion, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.suggestion, nil
}

func newIssueService(issues *mockIssueRepo, attachments *mockAttachmentReader, votes *mockUserVotes, users *mockUserInfos, classifier descriptionClassifier) *IssueService {
	if attachments == nil {
		attachments = &mockAttachmentReader{}
	}
	if votes == nil {
		votes = &mockUserVotes{}
	}
	if users == nil {
		users = &mockUserInfos{infos: map[string]models.UserInfo{}}
	}
	return NewIssueService(IssueServiceParams{
		Issues:      issues,
		Attachments: attachments,
		Votes:       votes,
		Users:       users,
		Classifier:  classifier,
	})
}

func validCreateRequest() CreateIssueRequest {
	return CreateIssueRequest{
		Title:        "Burst water pipe",
		Description:  "Main line flooding the street",
		Category:     "water",
		County:       "Nairobi",
		Constituency: "Westlands",
		Ward:         "Parklands",
	}
}

func TestIssueServiceCreateStoresClassification(t *testing.T) {
	issues := &mockIssueRepo{}
	classifier := &mockClassifier{suggestion: &dto.ClassifySuggestion{Category: "water", Severity: "high", Confidence: 0.8}}
	svc := newIssueService(issues, nil, nil, nil, classifier)

	issue, err := svc.Create(context.Background(), validCreateRequest(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, classifier.calls)
	require.NotNil(t, issue.AIConfidence)
	assert.InDelta(t, 0.8, *issue.AIConfidence, 0.001)
	assert.JSONEq(t, `["water","high"]`, string(issue.AITags))
	assert.Equal(t, models.StatusOpen, issue.Status)
	assert.Equal(t, "u1", issue.SubmittedByID)
}

func TestIssueServiceCreateSurvivesClassifierFailure(t *testing.T) {
	issues := &mockIssueRepo{}
	classifier := &mockClassifier{err: appErrors.ErrClassifierUnavailable}
	svc := newIssueService(issues, nil, nil, nil, classifier)

	issue, err := svc.Create(context.Background(), validCreateRequest(), "u1")
	require.NoError(t, err)

	assert.Nil(t, issue.AIConfidence)
	assert.Len(t, issues.created, 1)
}

func TestIssueServiceCreateValidation(t *testing.T) {
	svc := newIssueService(&mockIssueRepo{}, nil, nil, nil, nil)

	req := validCreateRequest()
	req.Category = "potholes"
	_, err := svc.Create(context.Background(), req, "u1")

	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestIssueServiceGetMasksAnonymousSubmitter(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1", Anonymous: true, Upvotes: 5, Downvotes: 2},
	}}
	users := &mockUserInfos{infos: map[string]models.UserInfo{"u1": {ID: "u1", FullName: "Jane Wanjiku"}}}
	svc := newIssueService(issues, nil, nil, users, nil)

	issue, err := svc.Get(context.Background(), "i1", nil)
	require.NoError(t, err)

	assert.Nil(t, issue.SubmittedBy)
	assert.Equal(t, 3, issue.VoteScore)
}

func TestIssueServiceGetRevealsAnonymousToOwnerAndModerator(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1", Anonymous: true},
	}}
	users := &mockUserInfos{infos: map[string]models.UserInfo{"u1": {ID: "u1", FullName: "Jane Wanjiku"}}}

	for _, viewer := range []*models.JWTClaims{
		{UserID: "u1", Role: models.RoleCitizen},
		{UserID: "m1", Role: models.RoleAdmin},
	} {
		svc := newIssueService(issues, nil, nil, users, nil)
		issue, err := svc.Get(context.Background(), "i1", viewer)
		require.NoError(t, err)
		require.NotNil(t, issue.SubmittedBy)
		assert.Equal(t, "Jane Wanjiku", issue.SubmittedBy.FullName)
	}
}

func TestIssueServiceGetHidesModerationArtifactsFromCitizens(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1"},
	}}
	attachments := &mockAttachmentReader{
		response: &models.AdminResponse{IssueID: "i1", Message: "internal draft", IsPublic: false, RespondedByID: "m1"},
		notes:    []models.InternalNote{{IssueID: "i1", Note: "secret", AddedByID: "m1"}},
		updates: []models.IssueUpdate{
			{IssueID: "i1", Title: "public", IsPublic: true, UpdatedByID: "m1"},
			{IssueID: "i1", Title: "private", IsPublic: false, UpdatedByID: "m1"},
		},
	}
	svc := newIssueService(issues, attachments, nil, nil, nil)

	issue, err := svc.Get(context.Background(), "i1", &models.JWTClaims{UserID: "u2", Role: models.RoleCitizen})
	require.NoError(t, err)

	assert.Nil(t, issue.AdminResponse)
	assert.Empty(t, issue.InternalNotes)
	require.Len(t, issue.Updates, 1)
	assert.Equal(t, "public", issue.Updates[0].Title)
	assert.True(t, attachments.lastPublicOnly)
}

func TestIssueServiceGetShowsEverythingToModerators(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1"},
	}}
	attachments := &mockAttachmentReader{
		response: &models.AdminResponse{IssueID: "i1", Message: "internal draft", IsPublic: false, RespondedByID: "m1"},
		notes:    []models.InternalNote{{IssueID: "i1", Note: "secret", AddedByID: "m1"}},
		updates: []models.IssueUpdate{
			{IssueID: "i1", Title: "private", IsPublic: false, UpdatedByID: "m1"},
		},
	}
	svc := newIssueService(issues, attachments, nil, nil, nil)

	issue, err := svc.Get(context.Background(), "i1", &models.JWTClaims{UserID: "m1", Role: models.RoleModerator})
	require.NoError(t, err)

	require.NotNil(t, issue.AdminResponse)
	assert.Len(t, issue.InternalNotes, 1)
	assert.Len(t, issue.Updates, 1)
	assert.False(t, attachments.lastPublicOnly)
}

func TestIssueServiceGetIncludesViewerVote(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1"},
	}}
	votes := &mockUserVotes{votes: map[string]models.VoteType{"i1": models.VoteDown}}
	svc := newIssueService(issues, nil, votes, nil, nil)

	issue, err := svc.Get(context.Background(), "i1", &models.JWTClaims{UserID: "u2", Role: models.RoleCitizen})
	require.NoError(t, err)

	require.NotNil(t, issue.UserVote)
	assert.Equal(t, models.VoteDown, *issue.UserVote)
}

func TestIssueServiceUpdatePermissions(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1", Status: models.StatusPending},
	}}
	svc := newIssueService(issues, nil, nil, nil, nil)

	req := UpdateIssueRequest{Title: "New title", Description: "New description", Category: "roads", County: "Nairobi", Constituency: "Westlands", Ward: "Parklands"}

	_, err := svc.Update(context.Background(), "i1", req, &models.JWTClaims{UserID: "intruder", Role: models.RoleCitizen})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	updated, err := svc.Update(context.Background(), "i1", req, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, models.StatusPending, updated.Status)
}

func TestIssueServicePatchChangesOnlyProvidedFields(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {
			ID: "i1", SubmittedByID: "u1", Status: models.StatusPending,
			Title: "Burst pipe", Description: "Flooding the street",
			Category: models.IssueCategory("water"), County: "Nairobi",
			Constituency: "Westlands", Ward: "Parklands",
		},
	}}
	svc := newIssueService(issues, nil, nil, nil, nil)

	severity := "high"
	patched, err := svc.Patch(context.Background(), "i1", PatchIssueRequest{Severity: &severity}, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})
	require.NoError(t, err)

	assert.Equal(t, models.IssueSeverity("high"), patched.Severity)
	assert.Equal(t, "Burst pipe", patched.Title)
	assert.Equal(t, "Flooding the street", patched.Description)
	assert.Equal(t, "Nairobi", patched.County)
	assert.Equal(t, models.StatusPending, patched.Status)
}

func TestIssueServicePatchRejectsBlankTitle(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1", Title: "Burst pipe"},
	}}
	svc := newIssueService(issues, nil, nil, nil, nil)

	blank := "   "
	_, err := svc.Patch(context.Background(), "i1", PatchIssueRequest{Title: &blank}, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestIssueServicePatchPermissions(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1", Title: "Burst pipe"},
	}}
	svc := newIssueService(issues, nil, nil, nil, nil)

	title := "Burst pipe on Waiyaki Way"
	_, err := svc.Patch(context.Background(), "i1", PatchIssueRequest{Title: &title}, &models.JWTClaims{UserID: "intruder", Role: models.RoleCitizen})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	patched, err := svc.Patch(context.Background(), "i1", PatchIssueRequest{Title: &title}, &models.JWTClaims{UserID: "m1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, title, patched.Title)
}

func TestIssueServiceDeleteOwnerOrModeratorOnly(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1"},
	}}
	svc := newIssueService(issues, nil, nil, nil, nil)

	err := svc.Delete(context.Background(), "i1", &models.JWTClaims{UserID: "u2", Role: models.RoleCitizen})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	require.NoError(t, svc.Delete(context.Background(), "i1", &models.JWTClaims{UserID: "m1", Role: models.RoleModerator}))
	assert.Equal(t, []string{"i1"}, issues.deleted)
}

func TestIssueServiceMyIssuesScopesToViewer(t *testing.T) {
	issues := &mockIssueRepo{}
	svc := newIssueService(issues, nil, nil, nil, nil)

	_, _, err := svc.MyIssues(context.Background(), models.IssueFilter{SubmittedBy: "someone-else"}, &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})
	require.NoError(t, err)
	assert.Equal(t, "u1", issues.lastFilter.SubmittedBy)
}

func TestIssueServiceMyIssuesRevealsOwnAnonymousSubmissions(t *testing.T) {
	issues := &mockIssueRepo{
		listResult: []models.Issue{
			{ID: "i1", SubmittedByID: "u1", Anonymous: true, Upvotes: 2},
			{ID: "i2", SubmittedByID: "u1", Anonymous: false},
		},
		listTotal: 2,
	}
	users := &mockUserInfos{infos: map[string]models.UserInfo{
		"u1": {ID: "u1", FullName: "Jane Wanjiku"},
	}}
	svc := newIssueService(issues, nil, nil, users, nil)

	viewer := &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen}
	mine, _, err := svc.MyIssues(context.Background(), models.IssueFilter{}, viewer)
	require.NoError(t, err)

	require.Len(t, mine, 2)
	require.NotNil(t, mine[0].SubmittedBy)
	assert.Equal(t, "Jane Wanjiku", mine[0].SubmittedBy.FullName)
	assert.Equal(t, 2, mine[0].VoteScore)
	require.NotNil(t, mine[1].SubmittedBy)
}

func TestIssueServiceListMasksOtherAnonymousSubmissions(t *testing.T) {
	issues := &mockIssueRepo{
		listResult: []models.Issue{
			{ID: "i1", SubmittedByID: "u1", Anonymous: true},
			{ID: "i2", SubmittedByID: "u2", Anonymous: true},
		},
		listTotal: 2,
	}
	users := &mockUserInfos{infos: map[string]models.UserInfo{
		"u1": {ID: "u1", FullName: "Jane Wanjiku"},
		"u2": {ID: "u2", FullName: "Brian Otieno"},
	}}
	svc := newIssueService(issues, nil, nil, users, nil)

	viewer := &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen}
	listed, _, err := svc.List(context.Background(), models.IssueFilter{}, viewer)
	require.NoError(t, err)

	require.Len(t, listed, 2)
	require.NotNil(t, listed[0].SubmittedBy)
	assert.Equal(t, "Jane Wanjiku", listed[0].SubmittedBy.FullName)
	assert.Nil(t, listed[1].SubmittedBy)
}

func TestIssueServiceCategorizeRequiresText(t *testing.T) {
	svc := newIssueService(&mockIssueRepo{}, nil, nil, nil, &mockClassifier{})

	_, err := svc.Categorize(context.Background(), "   ")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestIssueServiceAttachImagePermissions(t *testing.T) {
	issues := &mockIssueRepo{issues: map[string]*models.Issue{
		"i1": {ID: "i1", SubmittedByID: "u1"},
	}}
	svc := newIssueService(issues, nil, nil, nil, nil)

	_, err := svc.AttachImage(context.Background(), "i1", "/uploads/x.jpg", "", &models.JWTClaims{UserID: "u2", Role: models.RoleCitizen})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)

	image, err := svc.AttachImage(context.Background(), "i1", "/uploads/x.jpg", "the pipe", &models.JWTClaims{UserID: "u1", Role: models.RoleCitizen})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.jpg", image.URL)
	assert.Len(t, issues.images["i1"], 1)
}
