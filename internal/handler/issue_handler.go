package handler

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uwazi254/uwazi-api/internal/dto"
	"github.com/uwazi254/uwazi-api/internal/models"
	"github.com/uwazi254/uwazi-api/internal/service"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
	"github.com/uwazi254/uwazi-api/pkg/response"
	"github.com/uwazi254/uwazi-api/pkg/storage"
)

const maxImageSize = 5 << 20

type issueService interface {
	Create(ctx context.Context, req service.CreateIssueRequest, submitterID string) (*models.Issue, error)
	Get(ctx context.Context, id string, viewer *models.JWTClaims) (*models.Issue, error)
	List(ctx context.Context, filter models.IssueFilter, viewer *models.JWTClaims) ([]models.Issue, *models.Pagination, error)
	MyIssues(ctx context.Context, filter models.IssueFilter, viewer *models.JWTClaims) ([]models.Issue, *models.Pagination, error)
	Update(ctx context.Context, id string, req service.UpdateIssueRequest, actor *models.JWTClaims) (*models.Issue, error)
	Patch(ctx context.Context, id string, req service.PatchIssueRequest, actor *models.JWTClaims) (*models.Issue, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	AttachImage(ctx context.Context, issueID, url, caption string, actor *models.JWTClaims) (*models.IssueImage, error)
	Categorize(ctx context.Context, description string) (*dto.ClassifySuggestion, error)
}

type voteService interface {
	Cast(ctx context.Context, issueID, userID string, voteType models.VoteType) (models.VoteOutcome, error)
}

// IssueHandler wires HTTP endpoints to issue and vote services.
type IssueHandler struct {
	issues  issueService
	votes   voteService
	metrics *service.MetricsService
	uploads *storage.LocalStorage
}

// NewIssueHandler creates a new handler. Metrics and uploads may be nil.
func NewIssueHandler(issues issueService, votes voteService, metrics *service.MetricsService, uploads *storage.LocalStorage) *IssueHandler {
	return &IssueHandler{issues: issues, votes: votes, metrics: metrics, uploads: uploads}
}

// Create godoc
// @Summary Submit a new issue
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateIssueRequest true "Issue payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /issues [post]
func (h *IssueHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid issue payload"))
		return
	}

	issue, err := h.issues.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountIssueCreated()
	}

	response.Created(c, issue)
}

// List godoc
// @Summary List issues
// @Tags Issues
// @Produce json
// @Param category query string false "Category filter"
// @Param severity query string false "Severity filter"
// @Param status query string false "Status filter"
// @Param county query string false "County filter"
// @Param search query string false "Free-text search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /issues [get]
func (h *IssueHandler) List(c *gin.Context) {
	filter := parseIssueFilter(c)
	issues, pagination, err := h.issues.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, issues, pagination)
}

// MyIssues godoc
// @Summary List the caller's own issues
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /issues/my-issues [get]
func (h *IssueHandler) MyIssues(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := parseIssueFilter(c)
	issues, pagination, err := h.issues.MyIssues(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, issues, pagination)
}

// Get godoc
// @Summary Get an issue by id
// @Tags Issues
// @Produce json
// @Param id path string true "Issue id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id} [get]
func (h *IssueHandler) Get(c *gin.Context) {
	issue, err := h.issues.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, issue, nil)
}

// Update godoc
// @Summary Update an issue's content
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param payload body service.UpdateIssueRequest true "Issue fields"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id} [put]
func (h *IssueHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid issue payload"))
		return
	}

	issue, err := h.issues.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, issue, nil)
}

// Patch godoc
// @Summary Partially update an issue's content
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param payload body service.PatchIssueRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id} [patch]
func (h *IssueHandler) Patch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PatchIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid issue payload"))
		return
	}

	issue, err := h.issues.Patch(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, issue, nil)
}

// Delete godoc
// @Summary Delete an issue
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id} [delete]
func (h *IssueHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.issues.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Vote godoc
// @Summary Cast, switch or retract a vote
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param payload body handler.voteRequest true "Vote direction"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/vote [post]
func (h *IssueHandler) Vote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid vote payload"))
		return
	}

	outcome, err := h.votes.Cast(c.Request.Context(), c.Param("id"), claims.UserID, models.VoteType(req.VoteType))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountVote(string(outcome))
	}

	response.Message(c, http.StatusOK, outcome.Message())
}

// Categorize godoc
// @Summary Suggest category and severity for a description
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ClassifyRequest true "Description to classify"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /issues/categorize [post]
func (h *IssueHandler) Categorize(c *gin.Context) {
	var req dto.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid classify payload"))
		return
	}

	suggestion, err := h.issues.Categorize(c.Request.Context(), req.Description)
	if err != nil {
		if h.metrics != nil {
			h.metrics.CountClassifierCall("error")
		}
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountClassifierCall("ok")
	}

	response.JSON(c, http.StatusOK, suggestion, nil)
}

// UploadImage godoc
// @Summary Attach an image to an issue
// @Tags Issues
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Issue id"
// @Param image formData file true "Image file"
// @Param caption formData string false "Caption"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /issues/{id}/images [post]
func (h *IssueHandler) UploadImage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.uploads == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "uploads not configured"))
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	if file.Size > maxImageSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image exceeds 5MB limit"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported image type"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close()

	filename := fmt.Sprintf("issues/%s/%s%s", c.Param("id"), uuid.NewString(), ext)
	if _, err := h.uploads.SaveStream(filename, src); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}

	image, err := h.issues.AttachImage(c.Request.Context(), c.Param("id"), "/uploads/"+filename, c.PostForm("caption"), claims)
	if err != nil {
		_ = h.uploads.Delete(filename)
		response.Error(c, err)
		return
	}

	response.Created(c, image)
}

type voteRequest struct {
	VoteType string `json:"vote_type" binding:"required"`
}

func parseIssueFilter(c *gin.Context) models.IssueFilter {
	filter := models.IssueFilter{
		Category:     c.Query("category"),
		Severity:     c.Query("severity"),
		Status:       c.Query("status"),
		County:       c.Query("county"),
		Constituency: c.Query("constituency"),
		Ward:         c.Query("ward"),
		Search:       c.Query("search"),
		SortBy:       c.Query("sort_by"),
		SortOrder:    c.Query("sort_order"),
	}

	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateTo = &t
		}
	}
	if v := c.Query("anonymous"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Anonymous = &b
		}
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil {
		filter.PageSize = v
	}
	return filter
}
