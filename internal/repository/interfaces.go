package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("record already exists")
	ErrQuotaExhausted = errors.New("no uses left")
)

// All repository interfaces in one file
type (
	// AccountRepository is the credential store.
	AccountRepository interface {
		Create(ctx context.Context, account *model.Account) error
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
		GetByEmail(ctx context.Context, email string) (*model.Account, error)
		GetByReferralCode(ctx context.Context, code string) (*model.Account, error)
		GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Account, error)
		// DemotePremium clears a premium flag whose expiry is not after now.
		// It reports whether a row changed.
		DemotePremium(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
		// DecrementUses takes one use if any is left and returns the remainder.
		// ErrQuotaExhausted when uses_left was already 0.
		DecrementUses(ctx context.Context, id uuid.UUID) (int, error)
		ActivatePremium(ctx context.Context, id uuid.UUID, expiresAt *time.Time, subscriptionID *string) error
		ListStudentsByCreator(ctx context.Context, adminID uuid.UUID) ([]*model.StudentActivity, error)
	}

	ReferralRepository interface {
		// CreatePending records the referral and sets the referee's referred_by.
		CreatePending(ctx context.Context, referrerID, refereeID uuid.UUID, code string) (*model.ReferralRecord, error)
		// Complete settles the pending referral between the pair and rewards the referrer.
		// Returns nil, nil when there is nothing pending.
		Complete(ctx context.Context, referrerID, refereeID uuid.UUID, now time.Time, reward time.Duration) (*model.ReferralRecord, error)
		GetByReferee(ctx context.Context, refereeID uuid.UUID) (*model.ReferralRecord, error)
	}

	CohortRepository interface {
		CreateAccessCode(ctx context.Context, code *model.AccessCode, tools []string) error
		GetAccessCode(ctx context.Context, code string) (*model.AccessCode, error)
		ListAccessCodes(ctx context.Context, createdBy uuid.UUID) ([]*model.AccessCode, error)
		EnabledTools(ctx context.Context, code string) ([]string, error)
		SetTools(ctx context.Context, code string, tools []string) error
	}

	UsageRepository interface {
		Create(ctx context.Context, record *model.UsageRecord) error
		ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*model.UsageRecord, error)
	}

	CourseRepository interface {
		List(ctx context.Context, accountID uuid.UUID) ([]*model.CourseProgress, error)
		// CompleteModule marks one module and reports whether the whole course is now done.
		CompleteModule(ctx context.Context, accountID uuid.UUID, module int, now time.Time) (bool, error)
		CompleteAll(ctx context.Context, accountID uuid.UUID, now time.Time) error
	}

	ContactRepository interface {
		Enqueue(ctx context.Context, msg *model.ContactMessage) error
		// ProcessPending locks up to limit pending messages and hands each to deliver.
		ProcessPending(ctx context.Context, limit, maxAttempts int, deliver func(context.Context, *model.ContactMessage) error) (DeliveryStats, error)
		DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// GuestQuotaStore keeps the session-scoped quota of anonymous callers.
	GuestQuotaStore interface {
		Peek(ctx context.Context, guestID string) (int, error)
		// Consume takes one use if any is left. ok is false when the quota was exhausted.
		Consume(ctx context.Context, guestID string) (remaining int, ok bool, err error)
	}

	// SessionRevocationStore remembers logged out session tokens until they expire.
	SessionRevocationStore interface {
		Revoke(ctx context.Context, tokenID string, until time.Time) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}
)

type DeliveryStats struct {
	Sent   int
	Failed int
}
