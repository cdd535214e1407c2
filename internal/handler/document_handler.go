package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	"github.com/docutrail/dtrs-api/internal/service"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
	"github.com/docutrail/dtrs-api/pkg/response"
)

// DocumentHandler wires document intake and lookup endpoints.
type DocumentHandler struct {
	intake    *service.IntakeService
	dashboard *service.DashboardService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(intake *service.IntakeService, dashboard *service.DashboardService) *DocumentHandler {
	return &DocumentHandler{intake: intake, dashboard: dashboard}
}

// Receive godoc
// @Summary Register a new document
// @Description Registers a document at the actor's department and assigns a tracking number
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.ReceiveDocumentRequest true "Receive payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Receive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReceiveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid receive payload"))
		return
	}

	doc, err := h.intake.Receive(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.dashboard != nil {
		h.dashboard.InvalidateSummaries(c.Request.Context())
	}
	response.Created(c, doc)
}

// Get godoc
// @Summary Get a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// List godoc
// @Summary List documents
// @Description Lists documents. Non-admin actors only see their own department.
// @Tags Documents
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param departmentId query string false "Department scope"
// @Param caseId query string false "Case filter"
// @Param type query string false "Document type filter"
// @Param q query string false "Search in subject and tracking number"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.DocumentQuery{
		DepartmentID: strings.TrimSpace(c.Query("departmentId")),
		CaseID:       strings.TrimSpace(c.Query("caseId")),
		DocumentType: strings.TrimSpace(c.Query("type")),
		Search:       strings.TrimSpace(c.Query("q")),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.DocumentStatus(strings.ToUpper(strings.TrimSpace(part)))
			switch status {
			case models.DocumentStatusIncoming, models.DocumentStatusOnQueue, models.DocumentStatusOutgoing, models.DocumentStatusFinished:
				query.Status = append(query.Status, status)
			default:
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
				return
			}
		}
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	docs, err := h.intake.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: len(docs)}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Timeline godoc
// @Summary Document audit trail
// @Description Returns the append-only event log for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Param limit query int false "Max events"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/timeline [get]
func (h *DocumentHandler) Timeline(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := h.intake.Timeline(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}
