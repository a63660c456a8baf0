package subscription

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/handler"
	"github.com/nextlogic/remix-api/internal/middleware"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/service/subscription"
	apperrors "github.com/nextlogic/remix-api/pkg/errors"
)

// maxWebhookBytes matches what Stripe documents as its event payload ceiling.
const maxWebhookBytes = 65536

type Service interface {
	UpdateSubscription(ctx context.Context, accountID uuid.UUID, subscriptionID string) (*model.Account, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type Handler struct {
	svc     Service
	session *middleware.SessionMiddleware
}

func NewHandler(svc Service, session *middleware.SessionMiddleware) *Handler {
	return &Handler{svc: svc, session: session}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/update_subscription", h.session.Required(), h.UpdateSubscription)
	r.POST("/webhooks/stripe", h.Webhook)
}

type subscriptionResponse struct {
	IsPremium        bool        `json:"is_premium"`
	PremiumExpiresAt interface{} `json:"premium_expires_at"`
}

func (h *Handler) UpdateSubscription(c *gin.Context) {
	var req model.UpdateSubscriptionRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	accountID, _ := middleware.AccountIDFrom(c)

	account, err := h.svc.UpdateSubscription(c.Request.Context(), accountID, req.SubscriptionID)
	if err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}

	resp := subscriptionResponse{IsPremium: true, PremiumExpiresAt: "lifetime"}
	if account.PremiumExpiresAt != nil {
		resp.PremiumExpiresAt = account.PremiumExpiresAt
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

// Webhook needs the raw body for signature verification.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		handler.RespondWithError(c, apperrors.Validation("unreadable body", err))
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		handler.RespondWithError(c, mapError(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"received": true}))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, subscription.ErrMissingSubscription):
		return apperrors.Validation("subscription_id is required", err)
	case errors.Is(err, subscription.ErrPaymentUnverified):
		return apperrors.PaymentRequired("subscription is not active", err)
	case errors.Is(err, subscription.ErrSubscriptionBound):
		return apperrors.Conflict("subscription belongs to another account", err)
	case errors.Is(err, subscription.ErrInvalidWebhook):
		return apperrors.Validation("invalid webhook", err)
	case errors.Is(err, subscription.ErrUnknownAccount):
		return apperrors.NotFound("account", err)
	case errors.Is(err, subscription.ErrPaymentsDisabled), errors.Is(err, subscription.ErrProviderUnavailable):
		return apperrors.Upstream(err)
	default:
		return apperrors.Storage(err)
	}
}
