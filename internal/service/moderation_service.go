package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type moderationIssueRepository interface {
	FindByID(ctx context.Context, id string) (*models.Issue, error)
	SetStatus(ctx context.Context, id string, status models.IssueStatus) error
}

type moderationRepository interface {
	ReplaceResponse(ctx context.Context, resp *models.AdminResponse) error
	AddNote(ctx context.Context, note *models.InternalNote) error
	AddUpdate(ctx context.Context, update *models.IssueUpdate) error
}

// RespondRequest carries the public reply payload.
type RespondRequest struct {
	Message  string `json:"message" validate:"required"`
	IsPublic *bool  `json:"is_public"`
}

// NoteRequest carries a moderator-only annotation.
type NoteRequest struct {
	Note string `json:"note" validate:"required"`
}

// UpdateEntryRequest carries a progress update entry.
type UpdateEntryRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	IsPublic    *bool  `json:"is_public"`
}

// StatusRequest carries a lifecycle status change.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ModerationService implements the role-gated moderation workflow: responses,
// internal notes, progress updates and status changes.
type ModerationService struct {
	issues     moderationIssueRepository
	moderation moderationRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewModerationService creates an instance of ModerationService.
func NewModerationService(issues moderationIssueRepository, moderation moderationRepository, validate *validator.Validate, logger *zap.Logger) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ModerationService{issues: issues, moderation: moderation, validator: validate, logger: logger}
}

// Respond replaces the issue's public reply. A first response on an open
// issue advances it to pending; any later status is left alone.
func (s *ModerationService) Respond(ctx context.Context, issueID string, req RespondRequest, actor *models.JWTClaims) (*models.AdminResponse, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	resp := &models.AdminResponse{
		IssueID:       issue.ID,
		Message:       req.Message,
		RespondedByID: actor.UserID,
		IsPublic:      isPublic,
	}
	if err := s.moderation.ReplaceResponse(ctx, resp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store response")
	}

	if issue.Status == models.StatusOpen {
		if err := s.issues.SetStatus(ctx, issue.ID, models.StatusPending); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance status")
		}
	}

	return resp, nil
}

// AddNote appends a moderator-only annotation. No status side effect.
func (s *ModerationService) AddNote(ctx context.Context, issueID string, req NoteRequest, actor *models.JWTClaims) (*models.InternalNote, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	note := &models.InternalNote{
		IssueID:   issue.ID,
		Note:      req.Note,
		AddedByID: actor.UserID,
	}
	if err := s.moderation.AddNote(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store note")
	}
	return note, nil
}

// AddUpdate appends a progress update entry, public or private.
func (s *ModerationService) AddUpdate(ctx context.Context, issueID string, req UpdateEntryRequest, actor *models.JWTClaims) (*models.IssueUpdate, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	update := &models.IssueUpdate{
		IssueID:     issue.ID,
		Title:       req.Title,
		Description: req.Description,
		UpdatedByID: actor.UserID,
		IsPublic:    isPublic,
	}
	if err := s.moderation.AddUpdate(ctx, update); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store update")
	}
	return update, nil
}

// SetStatus moves the issue to any lifecycle status. Transitions are
// deliberately unrestricted for administrative flexibility.
func (s *ModerationService) SetStatus(ctx context.Context, issueID string, req StatusRequest, actor *models.JWTClaims) error {
	if err := requireModerator(actor); err != nil {
		return err
	}

	status := models.IssueStatus(strings.ToLower(req.Status))
	if !models.ValidStatus(status) {
		return appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return err
	}

	if err := s.issues.SetStatus(ctx, issue.ID, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set status")
	}
	return nil
}

func (s *ModerationService) findIssue(ctx context.Context, issueID string) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	return issue, nil
}

// requireModerator is the single capability check gating every moderation
// operation.
func requireModerator(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsModerator() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin or moderator role required")
	}
	return nil
}
