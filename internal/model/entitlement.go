package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Denial reason codes returned to clients.
const (
	ReasonUnknownCapability = "unknown_capability"
	ReasonCourseIncomplete  = "course_incomplete"
	ReasonToolNotPermitted  = "tool_not_permitted"
	ReasonPremiumRequired   = "premium_required"
	ReasonQuotaExhausted    = "quota_exhausted"
)

var reasonMessages = map[string]string{
	ReasonUnknownCapability: "unknown capability",
	ReasonCourseIncomplete:  "course incomplete",
	ReasonToolNotPermitted:  "tool not permitted by cohort",
	ReasonPremiumRequired:   "premium required",
	ReasonQuotaExhausted:    "quota exhausted",
}

// ReasonMessage is the human readable text for a reason code.
func ReasonMessage(reason string) string {
	if msg, ok := reasonMessages[reason]; ok {
		return msg
	}
	return reason
}

// Subject is who a decision is made for: an account, or a guest session.
type Subject struct {
	AccountID uuid.UUID
	GuestID   string
}

func AccountSubject(id uuid.UUID) Subject { return Subject{AccountID: id} }
func GuestSubject(id string) Subject      { return Subject{GuestID: id} }

func (s Subject) IsGuest() bool { return s.AccountID == uuid.Nil }

// Decision is the outcome of an entitlement evaluation.
type Decision struct {
	Allow      bool   `json:"allow"`
	Reason     string `json:"reason,omitempty"`
	QuotaAfter int    `json:"quota_after"`
	Unlimited  bool   `json:"unlimited"`
}

// Entitlement is a read-only snapshot of what a subject may do.
type Entitlement struct {
	LoggedIn         bool       `json:"logged_in"`
	IsPremium        bool       `json:"is_premium"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	UsesLeft         int        `json:"-"`
	Unlimited        bool       `json:"-"`
	AllowedTools     []string   `json:"allowed_tools"`
}

// QuotaValue renders remaining quota for clients: a count, or "unlimited".
func QuotaValue(usesLeft int, unlimited bool) interface{} {
	if unlimited {
		return "unlimited"
	}
	return usesLeft
}

func (e Entitlement) MarshalJSON() ([]byte, error) {
	type alias Entitlement
	return json.Marshal(struct {
		alias
		UsesLeft interface{} `json:"uses_left"`
	}{alias(e), QuotaValue(e.UsesLeft, e.Unlimited)})
}
