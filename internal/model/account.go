package model

import (
	"time"

	"github.com/google/uuid"
)

// Account roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Account is the aggregation root for identity and entitlement state.
type Account struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	Email                string     `json:"email" db:"email"`
	PasswordHash         string     `json:"-" db:"password_hash"`
	Role                 string     `json:"role" db:"role"`
	IsPremium            bool       `json:"is_premium" db:"is_premium"`
	PremiumExpiresAt     *time.Time `json:"premium_expires_at,omitempty" db:"premium_expires_at"`
	UsesLeft             int        `json:"uses_left" db:"uses_left"`
	ReferralCode         string     `json:"referral_code" db:"referral_code"`
	ReferredBy           *uuid.UUID `json:"referred_by,omitempty" db:"referred_by"`
	AccessCode           *string    `json:"access_code,omitempty" db:"access_code"`
	School               string     `json:"school,omitempty" db:"school"`
	CourseCompleted      bool       `json:"course_completed" db:"course_completed"`
	StripeSubscriptionID *string    `json:"-" db:"stripe_subscription_id"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// PremiumActive reports whether the account is premium at now. A nil expiry is a lifetime grant.
func (a *Account) PremiumActive(now time.Time) bool {
	return a.IsPremium && (a.PremiumExpiresAt == nil || a.PremiumExpiresAt.After(now))
}

// PremiumLapsed reports a stored premium flag whose expiry has already passed.
func (a *Account) PremiumLapsed(now time.Time) bool {
	return a.IsPremium && a.PremiumExpiresAt != nil && !a.PremiumExpiresAt.After(now)
}

// Lifetime reports a premium grant without expiry.
func (a *Account) Lifetime() bool {
	return a.IsPremium && a.PremiumExpiresAt == nil
}

// InCohort reports membership in a school cohort.
func (a *Account) InCohort() bool {
	return a.AccessCode != nil && *a.AccessCode != ""
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Normalized returns a copy with a lapsed premium flag cleared.
func (a *Account) Normalized(now time.Time) *Account {
	out := *a
	if out.PremiumLapsed(now) {
		out.IsPremium = false
	}
	return &out
}

// RewardedExpiry is the expiry after a reward of d: it stacks on an unexpired
// expiry instead of starting over from now. Lifetime grants stay lifetime (nil).
func (a *Account) RewardedExpiry(now time.Time, d time.Duration) *time.Time {
	if a.Lifetime() {
		return nil
	}
	base := now
	if a.PremiumExpiresAt != nil && a.PremiumExpiresAt.After(now) {
		base = *a.PremiumExpiresAt
	}
	t := base.Add(d)
	return &t
}

// ActivatedExpiry is the expiry after a paid activation of d from now.
// A later existing expiry, or a lifetime grant, is kept.
func (a *Account) ActivatedExpiry(now time.Time, d time.Duration) *time.Time {
	if a.Lifetime() {
		return nil
	}
	t := now.Add(d)
	if a.PremiumExpiresAt != nil && a.PremiumExpiresAt.After(t) {
		t = *a.PremiumExpiresAt
	}
	return &t
}

// AccountSummary is the public view of an account.
type AccountSummary struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	School           string     `json:"school,omitempty"`
	IsPremium        bool       `json:"is_premium"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	ReferralCode     string     `json:"referral_code"`
	CourseCompleted  bool       `json:"course_completed"`
	InCohort         bool       `json:"in_cohort"`
}

func (a *Account) Summary(now time.Time) AccountSummary {
	return AccountSummary{
		ID:               a.ID,
		Name:             a.Name,
		Email:            a.Email,
		Role:             a.Role,
		School:           a.School,
		IsPremium:        a.PremiumActive(now),
		PremiumExpiresAt: a.PremiumExpiresAt,
		ReferralCode:     a.ReferralCode,
		CourseCompleted:  a.CourseCompleted,
		InCohort:         a.InCohort(),
	}
}
