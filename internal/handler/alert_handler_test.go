package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/docutrail/dtrs-api/internal/middleware"
	"github.com/docutrail/dtrs-api/internal/models"
)

func TestAlertListRejectsMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAlertHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/alerts", nil)

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAlertListRejectsUnknownType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAlertHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/alerts?type=EXPIRED", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", DepartmentID: "dept-1", Role: models.RoleViewer})

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope errorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}
