package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	stripesub "github.com/stripe/stripe-go/v79/subscription"
)

// MetadataAccountKey is the subscription metadata entry naming the paying account.
const MetadataAccountKey = "account_id"

// Verifier confirms with the payment provider that a subscription is paid for
// by the given account.
type Verifier interface {
	Verify(ctx context.Context, subscriptionID string, accountID uuid.UUID) error
}

type StripeVerifier struct {
	client stripesub.Client
}

// NewStripeVerifier uses the live Stripe API.
func NewStripeVerifier(secretKey string) *StripeVerifier {
	return NewStripeVerifierWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

func NewStripeVerifierWithBackend(secretKey string, backend stripe.Backend) *StripeVerifier {
	return &StripeVerifier{client: stripesub.Client{B: backend, Key: secretKey}}
}

func (v *StripeVerifier) Verify(ctx context.Context, subscriptionID string, accountID uuid.UUID) error {
	if v.client.Key == "" {
		return ErrPaymentsDisabled
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := v.client.Get(subscriptionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: subscription not found", ErrPaymentUnverified)
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
	default:
		return fmt.Errorf("%w: subscription status %s", ErrPaymentUnverified, sub.Status)
	}

	owner := sub.Metadata[MetadataAccountKey]
	switch {
	case owner == "":
		return fmt.Errorf("%w: subscription names no account", ErrPaymentUnverified)
	case owner != accountID.String():
		return fmt.Errorf("%w: subscription belongs to another account", ErrSubscriptionBound)
	}
	return nil
}
