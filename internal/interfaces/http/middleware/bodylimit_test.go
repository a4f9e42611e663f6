package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/docprint/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), BodyLimit(limit))
	router.POST("/print/export", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.String(http.StatusRequestEntityTooLarge, "limit %d", maxErr.Limit)
			return
		}
		c.String(http.StatusOK, "%d", len(body))
	})
	router.GET("/print/paper-sizes", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		contentLength int64
		wantStatus    int
		wantBody      string
	}{
		{"payload within limit", `{"document":{}}`, 15, http.StatusOK, "15"},
		{"payload exactly at limit", strings.Repeat("x", 100), 100, http.StatusOK, "100"},
		{"declared length over limit", strings.Repeat("x", 200), 200, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge},
		{"chunked body over limit", strings.Repeat("x", 300), -1, http.StatusRequestEntityTooLarge, "limit 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/print/export", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			limitedRouter(100).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestBodyLimit_RejectionCarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/print/export", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set(RequestIDHeader, "req-body-1")
	w := httptest.NewRecorder()
	limitedRouter(10).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "req-body-1")
}

func TestBodyLimit_IgnoresBodylessRequests(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/print/paper-sizes", nil)
	w := httptest.NewRecorder()
	limitedRouter(1).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
