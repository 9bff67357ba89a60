// Package apierr defines the protocol's HTTP 400 error body and the gin
// plumbing that renders it.
package apierr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BadRequest is a business-rule violation. It serializes to the documented
// {error_code, error, message} body.
type BadRequest struct {
	ErrorCode int    `json:"error_code"`
	Label     string `json:"error"`
	Message   string `json:"message"`
}

func (e *BadRequest) Error() string {
	return e.Message
}

func New(errorCode int, label, message string) *BadRequest {
	return &BadRequest{ErrorCode: errorCode, Label: label, Message: message}
}

// Abort registers the error on the context for the error middleware and stops
// the handler chain.
func Abort(c *gin.Context, err *BadRequest) {
	_ = c.Error(err).SetType(gin.ErrorTypePublic).SetMeta(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, err)
}
