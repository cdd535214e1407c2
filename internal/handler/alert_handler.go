package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docutrail/dtrs-api/internal/models"
	"github.com/docutrail/dtrs-api/internal/service"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
	"github.com/docutrail/dtrs-api/pkg/response"
)

// AlertHandler exposes derived alert listings and the manual run trigger.
type AlertHandler struct {
	alerts *service.AlertService
}

// NewAlertHandler constructs the handler.
func NewAlertHandler(alerts *service.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// List godoc
// @Summary List alerts
// @Description Lists derived alerts. Non-admin actors only see their own department.
// @Tags Alerts
// @Produce json
// @Param documentId query string false "Document filter"
// @Param departmentId query string false "Department scope"
// @Param type query string false "OVERDUE or STALLED"
// @Param active query bool false "Only active alerts"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.AlertFilter{
		DocumentID:   strings.TrimSpace(c.Query("documentId")),
		DepartmentID: strings.TrimSpace(c.Query("departmentId")),
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		alertType := models.AlertType(strings.ToUpper(raw))
		if alertType != models.AlertTypeOverdue && alertType != models.AlertTypeStalled {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown alert type"))
			return
		}
		filter.AlertType = alertType
	}
	filter.ActiveOnly, _ = strconv.ParseBool(c.DefaultQuery("active", "true"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	alerts, err := h.alerts.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// Run godoc
// @Summary Run the alert pass now
// @Description Generates and retires alerts as of the current instant
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts/run [post]
func (h *AlertHandler) Run(c *gin.Context) {
	result, err := h.alerts.Generate(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
