package model

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name         string `json:"name" binding:"required,max=120"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8,max=72"`
	ReferralCode string `json:"referral_code" binding:"omitempty,max=32"`
	AccessCode   string `json:"access_code" binding:"omitempty,max=32"`
}

type RegisterResponse struct {
	Account      AccountSummary `json:"account"`
	ReferralCode string         `json:"referral_code"`
	Referred     bool           `json:"referred"`
}
