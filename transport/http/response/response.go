package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kochabonline/hartshorn/errors"
)

type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func NewResponse(code int, data any, message string) *Response {
	return &Response{
		Code:    code,
		Data:    data,
		Message: message,
	}
}

func GinJSON(c *gin.Context, data any) {
	c.JSON(http.StatusOK, NewResponse(http.StatusOK, data, ""))
}

func GinJSONError(c *gin.Context, err error) {
	defer c.Abort()

	e := errors.FromError(err)
	c.JSON(HTTPStatus(e.Code), NewResponse(int(e.Code), nil, e.Message))
}

// HTTPStatus maps an error code to an HTTP status. Codes that are already HTTP
// statuses are kept, a missing binding is 404 and anything else is 500.
func HTTPStatus(code int32) int {
	switch {
	case code == errors.CodeMissingBinding:
		return http.StatusNotFound
	case http.StatusText(int(code)) != "":
		return int(code)
	default:
		return http.StatusInternalServerError
	}
}
