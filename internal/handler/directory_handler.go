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

// DirectoryHandler manages the department and user master data endpoints.
type DirectoryHandler struct {
	directory *service.DirectoryService
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(directory *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// CreateDepartment godoc
// @Summary Create a department
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.CreateDepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /departments [post]
func (h *DirectoryHandler) CreateDepartment(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid department payload"))
		return
	}

	department, err := h.directory.CreateDepartment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// ListDepartments godoc
// @Summary List departments
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DirectoryHandler) ListDepartments(c *gin.Context) {
	departments, err := h.directory.ListDepartments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// SetDepartmentActive godoc
// @Summary Activate or deactivate a department
// @Description Inactive departments cannot receive forwarded documents
// @Tags Directory
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body map[string]bool true "Active flag"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /departments/{id}/active [put]
func (h *DirectoryHandler) SetDepartmentActive(c *gin.Context) {
	var payload struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "active flag required"))
		return
	}

	if err := h.directory.SetDepartmentActive(c.Request.Context(), c.Param("id"), *payload.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateUser godoc
// @Summary Create a user account
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *DirectoryHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}

	user, err := h.directory.CreateUser(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// ListUsers godoc
// @Summary List users of a department
// @Tags Directory
// @Produce json
// @Param departmentId query string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *DirectoryHandler) ListUsers(c *gin.Context) {
	departmentID := strings.TrimSpace(c.Query("departmentId"))
	if departmentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "departmentId is required"))
		return
	}

	users, err := h.directory.ListUsers(c.Request.Context(), departmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// ReassignUser godoc
// @Summary Move a user to another department
// @Description Rejected while the user still holds open documents
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.ReassignUserRequest true "Reassignment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/reassign [post]
func (h *DirectoryHandler) ReassignUser(c *gin.Context) {
	var req dto.ReassignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reassignment payload"))
		return
	}

	user, err := h.directory.ReassignUser(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
