package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uwazi254/uwazi-api/internal/models"
	"github.com/uwazi254/uwazi-api/internal/service"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
	"github.com/uwazi254/uwazi-api/pkg/response"
)

type moderationService interface {
	Respond(ctx context.Context, issueID string, req service.RespondRequest, actor *models.JWTClaims) (*models.AdminResponse, error)
	AddNote(ctx context.Context, issueID string, req service.NoteRequest, actor *models.JWTClaims) (*models.InternalNote, error)
	AddUpdate(ctx context.Context, issueID string, req service.UpdateEntryRequest, actor *models.JWTClaims) (*models.IssueUpdate, error)
	SetStatus(ctx context.Context, issueID string, req service.StatusRequest, actor *models.JWTClaims) error
}

type dashboardInvalidator interface {
	InvalidateDashboard(ctx context.Context)
}

// ModerationHandler wires the role-gated moderation endpoints.
type ModerationHandler struct {
	moderation moderationService
	analytics  dashboardInvalidator
}

// NewModerationHandler creates a new handler. Analytics may be nil and is
// used only for cache invalidation after status changes.
func NewModerationHandler(moderation moderationService, analytics dashboardInvalidator) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, analytics: analytics}
}

// Respond godoc
// @Summary Post or replace the official response on an issue
// @Tags Moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param payload body service.RespondRequest true "Response payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/response [post]
func (h *ModerationHandler) Respond(c *gin.Context) {
	var req service.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid response payload"))
		return
	}

	resp, err := h.moderation.Respond(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidate(c)

	response.Created(c, resp)
}

// AddNote godoc
// @Summary Attach an internal note to an issue
// @Tags Moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param payload body service.NoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /issues/{id}/note [post]
func (h *ModerationHandler) AddNote(c *gin.Context) {
	var req service.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}

	note, err := h.moderation.AddNote(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, note)
}

// AddUpdate godoc
// @Summary Attach a progress update to an issue
// @Tags Moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param payload body service.UpdateEntryRequest true "Update payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /issues/{id}/updates [post]
func (h *ModerationHandler) AddUpdate(c *gin.Context) {
	var req service.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	update, err := h.moderation.AddUpdate(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, update)
}

// SetStatus godoc
// @Summary Change an issue's lifecycle status
// @Tags Moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param payload body service.StatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /issues/{id}/status [patch]
func (h *ModerationHandler) SetStatus(c *gin.Context) {
	var req service.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	if err := h.moderation.SetStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidate(c)

	response.Message(c, http.StatusOK, "Status updated")
}

func (h *ModerationHandler) invalidate(c *gin.Context) {
	if h.analytics != nil {
		h.analytics.InvalidateDashboard(c.Request.Context())
	}
}
