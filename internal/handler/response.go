package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

const internalMessage = "internal server error"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// ErrorResponseFor builds the envelope and status for err. Details of 5xx
// errors stay out of the body.
func ErrorResponseFor(err error) (int, *Response) {
	status := apperrors.HTTPStatus(err)
	resp := NewErrorResponse(internalMessage)
	resp.Code = "internal_error"

	if appErr, ok := apperrors.As(err); ok {
		resp.Code = appErr.ReasonCode()
		if status < http.StatusInternalServerError {
			resp.Message = appErr.Message
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		status = http.StatusBadRequest
		resp.Code = "validation_error"
		resp.Message = ValidationMessage(verrs)
	}
	return status, resp
}

// RespondWithError writes the error envelope and aborts the chain.
func RespondWithError(c *gin.Context, err error) {
	status, resp := ErrorResponseFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}

// BindJSON binds the body into obj, answering 400 itself when that fails.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondWithError(c, apperrors.Validation("invalid request body", err))
		return false
	}
	return true
}
