package contact

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/model"
	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

type Service interface {
	Submit(ctx context.Context, req *model.ContactRequest) (*model.ContactMessage, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/contact", h.Submit)
}

// Submit only queues the message. Delivery happens in the mail dispatcher.
func (h *Handler) Submit(c *gin.Context) {
	var req model.ContactRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if _, err := h.svc.Submit(c.Request.Context(), &req); err != nil {
		handler.RespondWithError(c, apperrors.Storage(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "Thanks, we will get back to you soon."}))
}
