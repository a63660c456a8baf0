package remix

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/middleware"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/service/entitlement"
	"github.com/nextlogic/remix-api/internal/service/rewrite"
	"github.com/nextlogic/remix-api/internal/service/usage"
	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

type Config struct {
	AllowGuests     bool
	MaxContentChars int
}

type Handler struct {
	resolver    entitlement.Resolver
	gateway     rewrite.Gateway
	recorder    usage.Recorder
	session     *middleware.SessionMiddleware
	guestCookie middleware.CookieConfig
	config      Config
}

func NewHandler(resolver entitlement.Resolver, gateway rewrite.Gateway, recorder usage.Recorder,
	session *middleware.SessionMiddleware, guestCookie middleware.CookieConfig, config Config) *Handler {
	return &Handler{
		resolver:    resolver,
		gateway:     gateway,
		recorder:    recorder,
		session:     session,
		guestCookie: guestCookie,
		config:      config,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	if h.config.AllowGuests {
		r.POST("/remix", h.session.Optional(), middleware.GuestSession(h.guestCookie), h.Remix)
		return
	}
	r.POST("/remix", h.session.Required(), h.Remix)
}

// Remix runs one rewrite: decide, generate, record. A use taken by the
// decision stays taken when generation fails.
func (h *Handler) Remix(c *gin.Context) {
	var req model.RemixRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		handler.RespondWithError(c, apperrors.Validation("content is required", nil))
		return
	}
	if h.config.MaxContentChars > 0 && utf8.RuneCountInString(content) > h.config.MaxContentChars {
		handler.RespondWithError(c, apperrors.Validation("content is too long", nil))
		return
	}
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = model.DefaultTool
	}

	subject, ok := h.subject(c)
	if !ok {
		handler.RespondWithError(c, apperrors.Unauthorized("not logged in", nil))
		return
	}

	ctx := c.Request.Context()
	decision, err := h.resolver.Resolve(ctx, subject, style)
	if errors.Is(err, entitlement.ErrUnknownAccount) {
		handler.RespondWithError(c, apperrors.Unauthorized("not logged in", err))
		return
	}
	if err != nil {
		handler.RespondWithError(c, apperrors.Storage(err))
		return
	}
	if !decision.Allow {
		handler.RespondWithError(c, apperrors.Denied(decision.Reason, model.ReasonMessage(decision.Reason)))
		return
	}

	output, err := h.gateway.Transform(ctx, content, style)
	if errors.Is(err, rewrite.ErrTimeout) {
		handler.RespondWithError(c, apperrors.Timeout(err))
		return
	}
	if err != nil {
		handler.RespondWithError(c, apperrors.Upstream(err))
		return
	}

	if !subject.IsGuest() {
		// failures are logged and counted by the recorder; the caller still gets the output
		_, _ = h.recorder.Record(ctx, subject.AccountID, style, content, output)
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.RemixResponse{
		Output:   output,
		Style:    style,
		UsesLeft: model.QuotaValue(decision.QuotaAfter, decision.Unlimited),
	}))
}

func (h *Handler) subject(c *gin.Context) (model.Subject, bool) {
	if id, ok := middleware.AccountIDFrom(c); ok {
		return model.AccountSubject(id), true
	}
	if !h.config.AllowGuests {
		return model.Subject{}, false
	}
	guestID := middleware.GuestIDFrom(c)
	if guestID == "" {
		return model.Subject{}, false
	}
	return model.GuestSubject(guestID), true
}
