package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/middleware"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/service/admin"
	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

type Service interface {
	CreateAccessCode(ctx context.Context, adminID uuid.UUID, schoolName string) (*model.AccessCode, error)
	ListAccessCodes(ctx context.Context, adminID uuid.UUID) ([]*model.AccessCode, error)
	Tools(ctx context.Context, adminID uuid.UUID, code string) ([]model.ToolSetting, error)
	SetTools(ctx context.Context, adminID uuid.UUID, code string, tools []string) ([]model.ToolSetting, error)
	Students(ctx context.Context, adminID uuid.UUID) ([]*model.StudentActivity, error)
	StudentHistory(ctx context.Context, adminID, studentID uuid.UUID) ([]model.HistoryEntry, error)
}

type Handler struct {
	svc     Service
	session *middleware.SessionMiddleware
}

func NewHandler(svc Service, session *middleware.SessionMiddleware) *Handler {
	return &Handler{svc: svc, session: session}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/admin", h.session.Required(), h.session.Admin())
	{
		a.POST("/codes", h.CreateAccessCode)
		a.GET("/codes", h.ListAccessCodes)
		a.GET("/codes/:code/tools", h.Tools)
		a.PUT("/codes/:code/tools", h.SetTools)
		a.GET("/students", h.Students)
		a.GET("/students/:id/history", h.StudentHistory)
	}
}

func (h *Handler) CreateAccessCode(c *gin.Context) {
	var req model.CreateAccessCodeRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	adminID, _ := middleware.AccountIDFrom(c)

	code, err := h.svc.CreateAccessCode(c.Request.Context(), adminID, req.SchoolName)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(code))
}

func (h *Handler) ListAccessCodes(c *gin.Context) {
	adminID, _ := middleware.AccountIDFrom(c)

	codes, err := h.svc.ListAccessCodes(c.Request.Context(), adminID)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}
	if codes == nil {
		codes = []*model.AccessCode{}
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(codes))
}

func (h *Handler) Tools(c *gin.Context) {
	adminID, _ := middleware.AccountIDFrom(c)

	tools, err := h.svc.Tools(c.Request.Context(), adminID, c.Param("code"))
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(tools))
}

func (h *Handler) SetTools(c *gin.Context) {
	var req model.UpdateToolsRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	adminID, _ := middleware.AccountIDFrom(c)

	tools, err := h.svc.SetTools(c.Request.Context(), adminID, c.Param("code"), req.Tools)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(tools))
}

func (h *Handler) Students(c *gin.Context) {
	adminID, _ := middleware.AccountIDFrom(c)

	students, err := h.svc.Students(c.Request.Context(), adminID)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(students))
}

func (h *Handler) StudentHistory(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondWithError(c, apperrors.Validation("invalid student id", err))
		return
	}
	adminID, _ := middleware.AccountIDFrom(c)

	history, err := h.svc.StudentHistory(c.Request.Context(), adminID, studentID)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(history))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, admin.ErrCodeNotFound):
		return apperrors.NotFound("access code", err)
	case errors.Is(err, admin.ErrStudentNotFound):
		return apperrors.NotFound("student", err)
	case errors.Is(err, admin.ErrUnknownTool):
		return apperrors.Validation(err.Error(), err)
	default:
		return apperrors.Storage(err)
	}
}
