package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/docprint/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRef struct {
	Type   string `json:"type" binding:"required"`
	Number string `json:"number" binding:"required,max=8"`
}

type testSessionRequest struct {
	Documents []testRef `json:"documents" binding:"required,min=1,max=2,dive"`
	Copies    int       `json:"copies" binding:"omitempty,min=1,max=100"`
	SessionID string    `json:"session_id" binding:"omitempty,uuid"`
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req testSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(nil))
	})

	post := func(body string) (*httptest.ResponseRecorder, dto.Response) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w, resp
	}

	t.Run("reports nested fields by JSON path", func(t *testing.T) {
		w, resp := post(`{"documents":[{"type":"INVOICE","number":"INV-000000001"}],"copies":500}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, w.Header().Get(RequestIDHeader), resp.Error.RequestID)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "Must be at most 8 characters", messages["documents[0].number"])
		assert.Equal(t, "Must be at most 100", messages["copies"])
	})

	t.Run("empty document list", func(t *testing.T) {
		_, resp := post(`{"documents":[]}`)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "documents", resp.Error.Details[0].Field)
		assert.Equal(t, "Must contain at least 1 items", resp.Error.Details[0].Message)
	})

	t.Run("missing documents and bad uuid", func(t *testing.T) {
		_, resp := post(`{"session_id":"nope"}`)
		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "This field is required", messages["documents"])
		assert.Equal(t, "Invalid UUID format", messages["session_id"])
	})

	t.Run("valid request", func(t *testing.T) {
		w, resp := post(`{"documents":[{"type":"INVOICE","number":"INV-1"}],"copies":2}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)
	})
}

func TestFormatValidationErrors_NonValidationError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "req-1")
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}
