package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/service"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
	"github.com/docutrail/dtrs-api/pkg/response"
)

// CustodyHandler exposes physical custody operations.
type CustodyHandler struct {
	custody   *service.CustodyService
	dashboard *service.DashboardService
}

// NewCustodyHandler constructs the handler.
func NewCustodyHandler(custody *service.CustodyService, dashboard *service.DashboardService) *CustodyHandler {
	return &CustodyHandler{custody: custody, dashboard: dashboard}
}

func (h *CustodyHandler) invalidateDashboards(c *gin.Context) {
	if h.dashboard != nil {
		h.dashboard.InvalidateSummaries(c.Request.Context())
	}
}

// Assign godoc
// @Summary Assign custody of the original
// @Description Records which department and custodian physically hold the original
// @Tags Custody
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.AssignCustodyRequest true "Custody payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/custody [post]
func (h *CustodyHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AssignCustodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid custody payload"))
		return
	}

	custody, err := h.custody.AssignOriginal(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, custody, nil)
}

// RecordCopy godoc
// @Summary Inventory a reproduction
// @Description Records a certified copy, photocopy, or scan held somewhere in the system
// @Tags Custody
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.RecordCopyRequest true "Copy payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id}/copies [post]
func (h *CustodyHandler) RecordCopy(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RecordCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid copy payload"))
		return
	}

	copyRec, err := h.custody.RecordCopy(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateDashboards(c)
	response.Created(c, copyRec)
}

// Return godoc
// @Summary Return the original to its owner
// @Description Records the physical original leaving the office, finishing idle documents
// @Tags Custody
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ReturnOriginalRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/return [post]
func (h *CustodyHandler) Return(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReturnOriginalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid return payload"))
		return
	}

	doc, err := h.custody.MarkReturned(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, doc, nil)
}

// History godoc
// @Summary Custody history
// @Description Lists every custody record and copy inventoried for a document
// @Tags Custody
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/custody [get]
func (h *CustodyHandler) History(c *gin.Context) {
	custodies, copies, err := h.custody.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"custody": custodies, "copies": copies}, nil)
}
