package model

import (
	"time"

	"github.com/google/uuid"
)

// Referral statuses
const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
)

// ReferralRecord links a referrer to the account that signed up with their code.
type ReferralRecord struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ReferrerID  uuid.UUID  `json:"referrer_id" db:"referrer_id"`
	RefereeID   uuid.UUID  `json:"referee_id" db:"referee_id"`
	CodeUsed    string     `json:"code_used" db:"code_used"`
	Status      string     `json:"status" db:"status"`
	RewardGiven bool       `json:"reward_given" db:"reward_given"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
