package model

import (
	"time"

	"github.com/google/uuid"
)

// Contact message statuses
const (
	ContactPending = "pending"
	ContactSent    = "sent"
	ContactFailed  = "failed"
)

// ContactMessage is queued by the contact form and delivered by the mail dispatcher.
type ContactMessage struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Email     string     `json:"email" db:"email"`
	Message   string     `json:"message" db:"message"`
	Status    string     `json:"status" db:"status"`
	Attempts  int        `json:"attempts" db:"attempts"`
	LastError *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}

type ContactRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required,max=5000"`
}
