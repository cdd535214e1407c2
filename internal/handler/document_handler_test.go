package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/docutrail/dtrs-api/internal/middleware"
	"github.com/docutrail/dtrs-api/internal/models"
)

func TestDocumentListRejectsMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentHandler(nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/documents", nil)

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDocumentListRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentHandler(nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/documents?status=ON_QUEUE,SHELVED", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", DepartmentID: "dept-1", Role: models.RoleViewer})

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope errorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestDocumentReceiveRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentHandler(nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/documents", badJSONBody())
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", DepartmentID: "dept-1", Role: models.RoleRecordsOfficer})

	handler.Receive(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func badJSONBody() *strings.Reader {
	return strings.NewReader(`{"title":`)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
