package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/middleware"
	"github.com/nextlogic/remix-api/internal/model"
	authsvc "github.com/nextlogic/remix-api/internal/service/auth"
	"github.com/nextlogic/remix-api/internal/service/entitlement"
	"github.com/nextlogic/remix-api/pkg/auth"
	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.RegisterResponse, error)
	Login(ctx context.Context, email, password string) (*model.Account, string, *auth.Claims, error)
	Logout(ctx context.Context, claims *auth.Claims) error
}

type Handler struct {
	svc          Service
	entitlements entitlement.Resolver
	session      *middleware.SessionMiddleware
	cookie       middleware.CookieConfig
	guestCookie  middleware.CookieConfig
}

func NewHandler(svc Service, entitlements entitlement.Resolver, session *middleware.SessionMiddleware,
	cookie, guestCookie middleware.CookieConfig) *Handler {
	return &Handler{
		svc:          svc,
		entitlements: entitlements,
		session:      session,
		cookie:       cookie,
		guestCookie:  guestCookie,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.session.Required(), h.Logout)
	r.GET("/check_session", h.session.Optional(), middleware.GuestSession(h.guestCookie), h.CheckSession)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(resp))
}

type loginResponse struct {
	Account     model.AccountSummary `json:"account"`
	Entitlement *model.Entitlement   `json:"entitlement"`
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	account, token, claims, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}

	snapshot, err := h.entitlements.Snapshot(ctx, model.AccountSubject(account.ID))
	if err != nil {
		handler.RespondWithError(c, apperrors.Storage(err))
		return
	}

	middleware.SetCookie(c, h.cookie, token, time.Until(claims.ExpiresAt.Time))
	c.JSON(http.StatusOK, handler.NewSuccessResponse(loginResponse{
		Account:     account.Summary(time.Now()),
		Entitlement: snapshot,
	}))
}

func (h *Handler) Logout(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	if err := h.svc.Logout(c.Request.Context(), claims); err != nil {
		handler.RespondWithError(c, apperrors.Storage(err))
		return
	}

	middleware.ClearCookie(c, h.cookie)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"logged_in": false}))
}

// CheckSession always answers 200. A broken or stale session reads as logged out.
func (h *Handler) CheckSession(c *gin.Context) {
	ctx := c.Request.Context()

	if id, ok := middleware.AccountIDFrom(c); ok {
		snapshot, err := h.entitlements.Snapshot(ctx, model.AccountSubject(id))
		if err == nil {
			c.JSON(http.StatusOK, handler.NewSuccessResponse(snapshot))
			return
		}
		if errors.Is(err, entitlement.ErrUnknownAccount) {
			middleware.ClearCookie(c, h.cookie)
		} else {
			log.Error().Err(err).Str("account_id", id.String()).Msg("session snapshot failed")
		}
	}

	snapshot, err := h.entitlements.Snapshot(ctx, model.GuestSubject(middleware.GuestIDFrom(c)))
	if err != nil {
		log.Error().Err(err).Msg("guest snapshot failed")
		snapshot, _ = h.entitlements.Snapshot(ctx, model.GuestSubject(""))
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(snapshot))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, authsvc.ErrEmailTaken):
		return apperrors.Conflict("email already registered", err)
	case errors.Is(err, authsvc.ErrInvalidAccessCode):
		return apperrors.Validation("invalid access code", err)
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return apperrors.Unauthorized("invalid credentials", err)
	default:
		return apperrors.Storage(err)
	}
}
