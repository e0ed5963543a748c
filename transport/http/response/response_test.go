package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kochabonline/hartshorn/errors"
)

func TestGinJson(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	GinJSON(c, "test data")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":200`)
	assert.Contains(t, w.Body.String(), `"data":"test data"`)
}

func TestGinJsonWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing binding", errors.MissingBinding("no binding for x"), http.StatusNotFound, `"code":1001`},
		{"http code", errors.New(http.StatusBadRequest, "bad input"), http.StatusBadRequest, `"code":400`},
		{"framework code", errors.Proxy("advise failed"), http.StatusInternalServerError, `"code":1100`},
		{"plain error", assert.AnError, http.StatusInternalServerError, `"code":500`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinJSONError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.True(t, c.IsAborted())
		})
	}
}
