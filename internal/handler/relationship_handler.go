package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/service"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
	"github.com/docutrail/dtrs-api/pkg/response"
)

// RelationshipHandler exposes attach, relate, and split operations.
type RelationshipHandler struct {
	relationships *service.RelationshipService
	dashboard     *service.DashboardService
}

// NewRelationshipHandler constructs the handler.
func NewRelationshipHandler(relationships *service.RelationshipService, dashboard *service.DashboardService) *RelationshipHandler {
	return &RelationshipHandler{relationships: relationships, dashboard: dashboard}
}

// Attach godoc
// @Summary Attach supporting documents
// @Description Links supporting documents to a source document
// @Tags Relationships
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.AttachRequest true "Attach payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id}/attach [post]
func (h *RelationshipHandler) Attach(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attach payload"))
		return
	}

	rels, err := h.relationships.AttachTo(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rels)
}

// Relate godoc
// @Summary Relate documents
// @Description Records a loose association between documents
// @Tags Relationships
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.RelateRequest true "Relate payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id}/relate [post]
func (h *RelationshipHandler) Relate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RelateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid relate payload"))
		return
	}

	rels, err := h.relationships.RelateTo(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rels)
}

// Split godoc
// @Summary Split a document
// @Description Carves child documents out of a parent and routes each to its target department
// @Tags Relationships
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.SplitRequest true "Split payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/split [post]
func (h *RelationshipHandler) Split(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid split payload"))
		return
	}

	res, err := h.relationships.SplitInto(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.dashboard != nil {
		h.dashboard.InvalidateSummaries(c.Request.Context())
	}
	response.Created(c, res)
}

// Links godoc
// @Summary Document relationships
// @Description Lists every relationship touching a document
// @Tags Relationships
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/relationships [get]
func (h *RelationshipHandler) Links(c *gin.Context) {
	rels, err := h.relationships.Links(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rels, nil)
}
