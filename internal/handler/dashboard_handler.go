package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docutrail/dtrs-api/internal/service"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
	"github.com/docutrail/dtrs-api/pkg/response"
)

// DashboardHandler serves aggregate workload views.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Dashboard summary
// @Description Returns queue, deadline, custody, and alert aggregates for the requested scope
// @Tags Dashboard
// @Produce json
// @Param departmentId query string false "Department scope (admins only; empty for all departments)"
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	start := time.Now()
	summary, err := h.dashboard.Summary(c.Request.Context(), claims, strings.TrimSpace(c.Query("departmentId")), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{"processing_time_ms": time.Since(start).Milliseconds()}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
