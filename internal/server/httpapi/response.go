package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/gin-gonic/gin"
)

// Envelope is the success body of every endpoint.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope is the failure body of every endpoint.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrUpload):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure envelope for err. Unclassified errors are
// logged and reported as a bare 500.
func respondError(c *gin.Context, logger logging.Logger, err error) {
	status := statusFor(err)

	body := ErrorEnvelope{StatusCode: status, Errors: []string{}}
	if e, ok := common.AsError(err); ok {
		body.Message = e.Message
		body.Errors = append(body.Errors, e.Details...)
	} else {
		logger.Error(requestContext(c), "unhandled error", "path", c.FullPath(), "error", err)
		status = http.StatusInternalServerError
		body.StatusCode = status
		body.Message = "internal error"
	}

	c.AbortWithStatusJSON(status, body)
}

func requestContext(c *gin.Context) context.Context {
	if c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}
