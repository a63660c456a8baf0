package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nextlogic/remix-api/internal/handler"
)

func errorBody(message, code string) *handler.Response {
	resp := handler.NewErrorResponse(message)
	resp.Code = code
	return resp
}

// ErrorHandler answers errors pushed with c.Error by later middleware, using
// the same envelope as the handlers. Responses already written are left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Debug().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		handler.RespondWithError(c, c.Errors.Last().Err)
	}
}
