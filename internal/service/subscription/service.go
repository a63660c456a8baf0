package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/internal/service/referral"
	"github.com/nextlogic/remix-api/pkg/logger"
)

var (
	ErrPaymentUnverified   = errors.New("payment could not be verified")
	ErrSubscriptionBound   = errors.New("subscription is bound to another account")
	ErrPaymentsDisabled    = errors.New("payments are not configured")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrInvalidWebhook      = errors.New("invalid webhook")
	ErrUnknownAccount      = errors.New("account not found")
	ErrMissingSubscription = errors.New("subscription id is required")
)

type Config struct {
	PremiumDuration time.Duration
	WebhookSecret   string
}

type Service struct {
	accounts  repository.AccountRepository
	referrals referral.Ledger
	verifier  Verifier
	config    Config
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(accounts repository.AccountRepository, referrals referral.Ledger, verifier Verifier,
	cfg Config, log *logger.Logger) *Service {
	if cfg.PremiumDuration <= 0 {
		cfg.PremiumDuration = 30 * 24 * time.Hour
	}
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		verifier:  verifier,
		config:    cfg,
		logger:    log,
		now:       time.Now,
	}
}

// UpdateSubscription activates premium for accountID once the provider confirms
// that subscriptionID is live and belongs to it.
func (s *Service) UpdateSubscription(ctx context.Context, accountID uuid.UUID, subscriptionID string) (*model.Account, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, ErrMissingSubscription
	}

	owner, err := s.accounts.GetBySubscriptionID(ctx, subscriptionID)
	switch {
	case err == nil && owner.ID != accountID:
		return nil, ErrSubscriptionBound
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}

	if err := s.verifier.Verify(ctx, subscriptionID, accountID); err != nil {
		return nil, err
	}
	return s.Activate(ctx, accountID, &subscriptionID)
}

// Activate grants premium for the configured duration, keeping any later
// expiry, then settles the account's referral.
func (s *Service) Activate(ctx context.Context, accountID uuid.UUID, subscriptionID *string) (*model.Account, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	now := s.now()
	expiresAt := account.ActivatedExpiry(now, s.config.PremiumDuration)

	err = s.accounts.ActivatePremium(ctx, accountID, expiresAt, subscriptionID)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrSubscriptionBound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate premium: %w", err)
	}

	account.IsPremium = true
	account.PremiumExpiresAt = expiresAt
	if subscriptionID != nil {
		account.StripeSubscriptionID = subscriptionID
	}

	s.logger.Info("premium activated", "account_id", accountID.String())

	// premium is already granted; a retry of the activation completes the referral
	if _, err := s.referrals.CompleteReferral(ctx, account); err != nil {
		s.logger.Error(err, "failed to complete referral", "account_id", accountID.String())
	}
	return account, nil
}

// HandleWebhook verifies the Stripe-Signature header and applies the events
// this service cares about. Other event types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.config.WebhookSecret == "" {
		return ErrPaymentsDisabled
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: session payload: %v", ErrInvalidWebhook, err)
		}
		return s.checkoutCompleted(ctx, &sess)
	default:
		s.logger.Debug("ignoring stripe event", "type", string(event.Type))
		return nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		s.logger.Info("checkout completed without payment", "session_id", sess.ID)
		return nil
	}

	accountID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("%w: client_reference_id %q", ErrInvalidWebhook, sess.ClientReferenceID)
	}

	var subscriptionID *string
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		subscriptionID = &sess.Subscription.ID
	}

	_, err = s.Activate(ctx, accountID, subscriptionID)
	return err
}
