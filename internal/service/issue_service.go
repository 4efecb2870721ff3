package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/dto"
	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type issueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id string) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
	Update(ctx context.Context, issue *models.Issue) error
	Delete(ctx context.Context, id string) error
	AddImage(ctx context.Context, image *models.IssueImage) error
	ListImages(ctx context.Context, issueID string) ([]models.IssueImage, error)
}

type issueAttachmentReader interface {
	FindResponse(ctx context.Context, issueID string) (*models.AdminResponse, error)
	ListNotes(ctx context.Context, issueID string) ([]models.InternalNote, error)
	ListUpdates(ctx context.Context, issueID string, publicOnly bool) ([]models.IssueUpdate, error)
}

type userVoteReader interface {
	Find(ctx context.Context, issueID, userID string) (*models.IssueVote, error)
	VotesByUser(ctx context.Context, userID string, issueIDs []string) (map[string]models.VoteType, error)
}

type userInfoResolver interface {
	InfosByIDs(ctx context.Context, ids []string) (map[string]models.UserInfo, error)
}

type descriptionClassifier interface {
	Classify(ctx context.Context, description string) (*dto.ClassifySuggestion, error)
}

// CreateIssueRequest carries the client-supplied fields of a new issue. The
// submitter always comes from the identity context, never the payload.
type CreateIssueRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"required"`
	Category     string   `json:"category" validate:"required,oneof=roads water health security corruption education environment housing"`
	Severity     string   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	County       string   `json:"county" validate:"required"`
	Constituency string   `json:"constituency" validate:"required"`
	Ward         string   `json:"ward" validate:"required"`
	Location     *string  `json:"location"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Anonymous    bool     `json:"anonymous"`
}

// UpdateIssueRequest carries the owner-editable content fields. Status and
// vote counters are not among them.
type UpdateIssueRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"required"`
	Category     string   `json:"category" validate:"required,oneof=roads water health security corruption education environment housing"`
	Severity     string   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	County       string   `json:"county" validate:"required"`
	Constituency string   `json:"constituency" validate:"required"`
	Ward         string   `json:"ward" validate:"required"`
	Location     *string  `json:"location"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Anonymous    *bool    `json:"anonymous"`
}

// PatchIssueRequest carries a partial edit. Nil fields are left untouched;
// present fields must still carry valid values.
type PatchIssueRequest struct {
	Title        *string  `json:"title" validate:"omitempty,max=200"`
	Description  *string  `json:"description"`
	Category     *string  `json:"category" validate:"omitempty,oneof=roads water health security corruption education environment housing"`
	Severity     *string  `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	County       *string  `json:"county"`
	Constituency *string  `json:"constituency"`
	Ward         *string  `json:"ward"`
	Location     *string  `json:"location"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Anonymous    *bool    `json:"anonymous"`
}

// IssueService owns the issue lifecycle: creation, retrieval with visibility
// rules, filtered listing, owner updates and deletion.
type IssueService struct {
	issues      issueRepository
	attachments issueAttachmentReader
	votes       userVoteReader
	users       userInfoResolver
	classifier  descriptionClassifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// IssueServiceParams groups constructor dependencies.
type IssueServiceParams struct {
	Issues      issueRepository
	Attachments issueAttachmentReader
	Votes       userVoteReader
	Users       userInfoResolver
	Classifier  descriptionClassifier
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewIssueService creates an instance of IssueService.
func NewIssueService(params IssueServiceParams) *IssueService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &IssueService{
		issues:      params.Issues,
		attachments: params.Attachments,
		votes:       params.Votes,
		users:       params.Users,
		classifier:  params.Classifier,
		validator:   validate,
		logger:      logger,
	}
}

// Create stores a new issue attributed to the submitter. Classification is
// advisory: a failed or slow classifier call never fails the creation.
func (s *IssueService) Create(ctx context.Context, req CreateIssueRequest, submitterID string) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}

	issue := &models.Issue{
		Title:         req.Title,
		Description:   req.Description,
		Category:      models.IssueCategory(req.Category),
		Severity:      models.IssueSeverity(req.Severity),
		Status:        models.StatusOpen,
		County:        req.County,
		Constituency:  req.Constituency,
		Ward:          req.Ward,
		Location:      req.Location,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		SubmittedByID: submitterID,
		Anonymous:     req.Anonymous,
	}

	if s.classifier != nil {
		if suggestion, err := s.classifier.Classify(ctx, req.Description); err != nil {
			s.logger.Warn("classification skipped", zap.Error(err))
		} else if suggestion != nil {
			if suggestion.Confidence > 0 {
				confidence := suggestion.Confidence
				issue.AIConfidence = &confidence
			}
			if tags, err := json.Marshal([]string{suggestion.Category, suggestion.Severity}); err == nil {
				issue.AITags = tags
			}
		}
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create issue")
	}

	return issue, nil
}

// Get returns an issue with its attachments, applying visibility rules for
// the given viewer. A nil viewer is an unauthenticated member of the public.
func (s *IssueService) Get(ctx context.Context, id string, viewer *models.JWTClaims) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}

	moderator := viewer != nil && viewer.Role.IsModerator()

	images, err := s.issues.ListImages(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load images")
	}
	issue.Images = images

	resp, err := s.attachments.FindResponse(ctx, id)
	switch {
	case err == nil:
		if resp.IsPublic || moderator {
			issue.AdminResponse = resp
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load response")
	}

	updates, err := s.attachments.ListUpdates(ctx, id, !moderator)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load updates")
	}
	issue.Updates = updates

	if moderator {
		notes, err := s.attachments.ListNotes(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notes")
		}
		issue.InternalNotes = notes
	}

	if viewer != nil {
		vote, err := s.votes.Find(ctx, id, viewer.UserID)
		if err == nil {
			voteType := vote.VoteType
			issue.UserVote = &voteType
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vote")
		}
	}

	if err := s.decorate(ctx, []*models.Issue{issue}, viewer); err != nil {
		return nil, err
	}
	if err := s.resolveAttachmentAuthors(ctx, issue); err != nil {
		return nil, err
	}

	return issue, nil
}

// resolveAttachmentAuthors fills the public identity of responders, note
// authors and update authors on a hydrated issue.
func (s *IssueService) resolveAttachmentAuthors(ctx context.Context, issue *models.Issue) error {
	seen := map[string]struct{}{}
	var ids []string
	collect := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if issue.AdminResponse != nil {
		collect(issue.AdminResponse.RespondedByID)
	}
	for i := range issue.InternalNotes {
		collect(issue.InternalNotes[i].AddedByID)
	}
	for i := range issue.Updates {
		collect(issue.Updates[i].UpdatedByID)
	}
	if len(ids) == 0 {
		return nil
	}

	infos, err := s.users.InfosByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve authors")
	}

	assign := func(id string) *models.UserInfo {
		if info, ok := infos[id]; ok {
			infoCopy := info
			return &infoCopy
		}
		return nil
	}

	if issue.AdminResponse != nil {
		issue.AdminResponse.RespondedBy = assign(issue.AdminResponse.RespondedByID)
	}
	for i := range issue.InternalNotes {
		issue.InternalNotes[i].AddedBy = assign(issue.InternalNotes[i].AddedByID)
	}
	for i := range issue.Updates {
		issue.Updates[i].UpdatedBy = assign(issue.Updates[i].UpdatedByID)
	}
	return nil
}

// List returns issues matching the filter with submitter identities resolved
// and anonymous submissions masked for non-moderator viewers.
func (s *IssueService) List(ctx context.Context, filter models.IssueFilter, viewer *models.JWTClaims) ([]models.Issue, *models.Pagination, error) {
	issues, total, err := s.issues.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}

	refs := make([]*models.Issue, len(issues))
	ids := make([]string, len(issues))
	for i := range issues {
		refs[i] = &issues[i]
		ids[i] = issues[i].ID
	}

	if err := s.decorate(ctx, refs, viewer); err != nil {
		return nil, nil, err
	}

	if viewer != nil && len(ids) > 0 {
		votes, err := s.votes.VotesByUser(ctx, viewer.UserID, ids)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load votes")
		}
		for i := range issues {
			if voteType, ok := votes[issues[i].ID]; ok {
				vt := voteType
				issues[i].UserVote = &vt
			}
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return issues, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// MyIssues lists the caller's own submissions, anonymous ones included.
func (s *IssueService) MyIssues(ctx context.Context, filter models.IssueFilter, viewer *models.JWTClaims) ([]models.Issue, *models.Pagination, error) {
	if viewer == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter.SubmittedBy = viewer.UserID
	return s.List(ctx, filter, viewer)
}

// Update applies owner edits to an issue's content fields. Only the submitter
// or a moderator/admin may update.
func (s *IssueService) Update(ctx context.Context, id string, req UpdateIssueRequest, actor *models.JWTClaims) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}

	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}

	if err := requireOwnerOrModerator(actor, issue.SubmittedByID); err != nil {
		return nil, err
	}

	issue.Title = req.Title
	issue.Description = req.Description
	issue.Category = models.IssueCategory(req.Category)
	if req.Severity != "" {
		issue.Severity = models.IssueSeverity(req.Severity)
	}
	issue.County = req.County
	issue.Constituency = req.Constituency
	issue.Ward = req.Ward
	issue.Location = req.Location
	issue.Latitude = req.Latitude
	issue.Longitude = req.Longitude
	if req.Anonymous != nil {
		issue.Anonymous = *req.Anonymous
	}

	if err := s.issues.Update(ctx, issue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update issue")
	}

	issue.VoteScore = issue.Score()
	return issue, nil
}

// Patch applies only the fields present in the request, leaving the rest of
// the issue as it was. Permissions match Update.
func (s *IssueService) Patch(ctx context.Context, id string, req PatchIssueRequest, actor *models.JWTClaims) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}
	for name, field := range map[string]*string{
		"title":        req.Title,
		"description":  req.Description,
		"county":       req.County,
		"constituency": req.Constituency,
		"ward":         req.Ward,
	} {
		if field != nil && strings.TrimSpace(*field) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, name+" cannot be blank")
		}
	}

	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}

	if err := requireOwnerOrModerator(actor, issue.SubmittedByID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		issue.Title = *req.Title
	}
	if req.Description != nil {
		issue.Description = *req.Description
	}
	if req.Category != nil {
		issue.Category = models.IssueCategory(*req.Category)
	}
	if req.Severity != nil {
		issue.Severity = models.IssueSeverity(*req.Severity)
	}
	if req.County != nil {
		issue.County = *req.County
	}
	if req.Constituency != nil {
		issue.Constituency = *req.Constituency
	}
	if req.Ward != nil {
		issue.Ward = *req.Ward
	}
	if req.Location != nil {
		issue.Location = req.Location
	}
	if req.Latitude != nil {
		issue.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		issue.Longitude = req.Longitude
	}
	if req.Anonymous != nil {
		issue.Anonymous = *req.Anonymous
	}

	if err := s.issues.Update(ctx, issue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update issue")
	}

	issue.VoteScore = issue.Score()
	return issue, nil
}

// Delete removes an issue and, through the cascade, everything attached to it.
func (s *IssueService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}

	if err := requireOwnerOrModerator(actor, issue.SubmittedByID); err != nil {
		return err
	}

	if err := s.issues.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete issue")
	}
	return nil
}

// AttachImage records an uploaded image against an issue. Only the owner or
// a moderator may attach.
func (s *IssueService) AttachImage(ctx context.Context, issueID, url, caption string, actor *models.JWTClaims) (*models.IssueImage, error) {
	issue, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}

	if err := requireOwnerOrModerator(actor, issue.SubmittedByID); err != nil {
		return nil, err
	}

	image := &models.IssueImage{
		IssueID: issue.ID,
		URL:     url,
		Caption: caption,
	}
	if err := s.issues.AddImage(ctx, image); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	return image, nil
}

// Categorize returns an advisory category/severity suggestion for free text.
func (s *IssueService) Categorize(ctx context.Context, description string) (*dto.ClassifySuggestion, error) {
	if strings.TrimSpace(description) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "description is required")
	}
	if s.classifier == nil {
		return nil, appErrors.Clone(appErrors.ErrClassifierUnavailable, "")
	}
	return s.classifier.Classify(ctx, description)
}

// decorate fills derived fields and resolves or masks submitter identities.
// Anonymous submissions keep their submitter hidden except from moderators
// and from the submitter themselves.
func (s *IssueService) decorate(ctx context.Context, issues []*models.Issue, viewer *models.JWTClaims) error {
	ids := make([]string, 0, len(issues))
	seen := map[string]struct{}{}
	for _, issue := range issues {
		issue.VoteScore = issue.Score()
		if !canSeeSubmitter(viewer, issue) {
			continue
		}
		if _, ok := seen[issue.SubmittedByID]; !ok {
			seen[issue.SubmittedByID] = struct{}{}
			ids = append(ids, issue.SubmittedByID)
		}
	}

	infos, err := s.users.InfosByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve submitters")
	}

	for _, issue := range issues {
		if !canSeeSubmitter(viewer, issue) {
			issue.SubmittedBy = nil
			continue
		}
		if info, ok := infos[issue.SubmittedByID]; ok {
			infoCopy := info
			issue.SubmittedBy = &infoCopy
		}
	}
	return nil
}

func canSeeSubmitter(viewer *models.JWTClaims, issue *models.Issue) bool {
	if !issue.Anonymous {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.Role.IsModerator() || viewer.UserID == issue.SubmittedByID
}

func requireOwnerOrModerator(actor *models.JWTClaims, ownerID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.UserID == ownerID || actor.Role.IsModerator() {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to modify this issue")
}
