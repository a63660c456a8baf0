package course

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/middleware"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/service/course"
	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

type Service interface {
	Status(ctx context.Context, accountID uuid.UUID) (*model.CourseStatus, error)
	CompleteModule(ctx context.Context, accountID uuid.UUID, module int) (*model.CourseStatus, error)
	CompleteCourse(ctx context.Context, accountID uuid.UUID) (*model.CourseStatus, error)
}

type Handler struct {
	svc     Service
	session *middleware.SessionMiddleware
}

func NewHandler(svc Service, session *middleware.SessionMiddleware) *Handler {
	return &Handler{svc: svc, session: session}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	c := r.Group("/course", h.session.Required())
	{
		c.GET("/progress", h.Progress)
		c.POST("/modules/:module/complete", h.CompleteModule)
		c.POST("/complete", h.CompleteCourse)
	}
}

func (h *Handler) Progress(c *gin.Context) {
	id, _ := middleware.AccountIDFrom(c)
	h.respond(c)(h.svc.Status(c.Request.Context(), id))
}

func (h *Handler) CompleteModule(c *gin.Context) {
	module, err := strconv.Atoi(c.Param("module"))
	if err != nil {
		handler.RespondWithError(c, apperrors.Validation("module must be a number", err))
		return
	}
	id, _ := middleware.AccountIDFrom(c)
	h.respond(c)(h.svc.CompleteModule(c.Request.Context(), id, module))
}

func (h *Handler) CompleteCourse(c *gin.Context) {
	id, _ := middleware.AccountIDFrom(c)
	h.respond(c)(h.svc.CompleteCourse(c.Request.Context(), id))
}

func (h *Handler) respond(c *gin.Context) func(*model.CourseStatus, error) {
	return func(status *model.CourseStatus, err error) {
		switch {
		case err == nil:
			c.JSON(http.StatusOK, handler.NewSuccessResponse(status))
		case errors.Is(err, course.ErrInvalidModule):
			handler.RespondWithError(c, apperrors.Validation("module must be between 1 and 4", err))
		case errors.Is(err, course.ErrUnknownAccount):
			handler.RespondWithError(c, apperrors.Unauthorized("not logged in", err))
		default:
			handler.RespondWithError(c, apperrors.Storage(err))
		}
	}
}
