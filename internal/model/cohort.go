package model

import (
	"time"

	"github.com/google/uuid"
)

// AccessCode is an admin-issued code; accounts registered with it form a cohort.
type AccessCode struct {
	Code       string    `json:"code" db:"code"`
	CreatedBy  uuid.UUID `json:"created_by" db:"created_by"`
	SchoolName string    `json:"school_name" db:"school_name"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ToolPermission is one entry of a cohort allow-list.
type ToolPermission struct {
	AccessCode string    `json:"access_code" db:"access_code"`
	Tool       string    `json:"tool" db:"tool"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type CreateAccessCodeRequest struct {
	SchoolName string `json:"school_name" binding:"max=200"`
}

type UpdateToolsRequest struct {
	Tools []string `json:"tools" binding:"required,dive,required"`
}

// ToolSetting is one registry tool as seen by a cohort admin.
type ToolSetting struct {
	Tool    string `json:"tool"`
	Premium bool   `json:"premium"`
	Enabled bool   `json:"enabled"`
}
