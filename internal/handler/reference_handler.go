package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uwazi254/uwazi-api/internal/service"
	"github.com/uwazi254/uwazi-api/pkg/response"
)

// ReferenceHandler serves the county, constituency and ward lookups.
type ReferenceHandler struct {
	reference *service.ReferenceService
}

// NewReferenceHandler creates a new handler.
func NewReferenceHandler(reference *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{reference: reference}
}

// Counties godoc
// @Summary List counties
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /counties [get]
func (h *ReferenceHandler) Counties(c *gin.Context) {
	counties, err := h.reference.Counties(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, counties, nil)
}

// Constituencies godoc
// @Summary List constituencies
// @Tags Reference
// @Produce json
// @Param county query string false "Scope to a county id"
// @Success 200 {object} response.Envelope
// @Router /constituencies [get]
func (h *ReferenceHandler) Constituencies(c *gin.Context) {
	constituencies, err := h.reference.Constituencies(c.Request.Context(), c.Query("county"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, constituencies, nil)
}

// Wards godoc
// @Summary List wards
// @Tags Reference
// @Produce json
// @Param constituency query string false "Scope to a constituency id"
// @Success 200 {object} response.Envelope
// @Router /wards [get]
func (h *ReferenceHandler) Wards(c *gin.Context) {
	wards, err := h.reference.Wards(c.Request.Context(), c.Query("constituency"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, wards, nil)
}
