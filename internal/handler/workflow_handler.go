package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/service"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
	"github.com/docutrail/dtrs-api/pkg/response"
)

// WorkflowHandler exposes the document routing operations.
type WorkflowHandler struct {
	workflow  *service.WorkflowService
	dashboard *service.DashboardService
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(workflow *service.WorkflowService, dashboard *service.DashboardService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow, dashboard: dashboard}
}

func (h *WorkflowHandler) invalidateDashboards(c *gin.Context) {
	if h.dashboard != nil {
		h.dashboard.InvalidateSummaries(c.Request.Context())
	}
}

// Forward godoc
// @Summary Forward a document
// @Description Routes a document from the actor's department to another department
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ForwardRequest true "Forward payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/forward [post]
func (h *WorkflowHandler) Forward(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid forward payload"))
		return
	}

	res, err := h.workflow.Forward(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, res, nil)
}

// Accept godoc
// @Summary Accept an inbound document
// @Description Accepts the pending transfer addressed to the actor's department
// @Tags Workflow
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/accept [post]
func (h *WorkflowHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	doc, err := h.workflow.Accept(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, doc, nil)
}

// Recall godoc
// @Summary Recall a forwarded document
// @Description Cancels the pending transfer and returns the document to the sender's queue
// @Tags Workflow
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/recall [post]
func (h *WorkflowHandler) Recall(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	doc, err := h.workflow.Recall(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, doc, nil)
}

// Complete godoc
// @Summary Complete a document
// @Description Finishes processing at the current department
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.CompleteRequest false "Completion remarks"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/complete [post]
func (h *WorkflowHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
			return
		}
	}

	doc, err := h.workflow.Complete(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, doc, nil)
}

// ForAction godoc
// @Summary Department work queue
// @Description Lists documents on the department queue plus inbound transfers awaiting acceptance
// @Tags Workflow
// @Produce json
// @Param departmentId query string false "Department scope (admins only)"
// @Success 200 {object} response.Envelope
// @Router /workflow/for-action [get]
func (h *WorkflowHandler) ForAction(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.workflow.ForAction(c.Request.Context(), claims, strings.TrimSpace(c.Query("departmentId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Pending godoc
// @Summary Transfers awaiting acceptance elsewhere
// @Description Lists pending transfers the actor's department sent out
// @Tags Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workflow/pending [get]
func (h *WorkflowHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	transfers, err := h.workflow.PendingAuthoredBy(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transfers, nil)
}
