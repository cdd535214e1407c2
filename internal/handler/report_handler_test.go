package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestReportDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/download", nil)

	handler.Download(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportRegisterRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/reports/register", badJSONBody())
	c.Request.Header.Set("Content-Type", "application/json")

	handler.MonthlyRegister(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
