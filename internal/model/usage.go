package model

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is an append-only log entry of a successful rewrite.
type UsageRecord struct {
	ID         int64     `json:"id" db:"id"`
	AccountID  uuid.UUID `json:"account_id" db:"account_id"`
	Tool       string    `json:"tool" db:"tool"`
	InputText  string    `json:"input_text" db:"input_text"`
	OutputText string    `json:"output_text" db:"output_text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// HistoryPreviewChars bounds the input preview shown to admins.
const HistoryPreviewChars = 100

// HistoryEntry is a usage record trimmed for the admin history view.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	Tool         string    `json:"tool"`
	InputPreview string    `json:"input_preview"`
	Output       string    `json:"output"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *UsageRecord) HistoryEntry() HistoryEntry {
	preview := []rune(r.InputText)
	text := r.InputText
	if len(preview) > HistoryPreviewChars {
		text = string(preview[:HistoryPreviewChars]) + "..."
	}
	return HistoryEntry{
		ID:           r.ID,
		Tool:         r.Tool,
		InputPreview: text,
		Output:       r.OutputText,
		CreatedAt:    r.CreatedAt,
	}
}

// StudentActivity is a cohort member with their most recent usage.
type StudentActivity struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Email           string     `json:"email" db:"email"`
	AccessCode      string     `json:"access_code" db:"access_code"`
	CourseCompleted bool       `json:"course_completed" db:"course_completed"`
	TotalUses       int        `json:"total_uses" db:"total_uses"`
	LastTool        *string    `json:"last_tool" db:"last_tool"`
	LastActive      *time.Time `json:"last_active" db:"last_active"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
