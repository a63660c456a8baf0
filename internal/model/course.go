package model

import (
	"time"

	"github.com/google/uuid"
)

// CourseModules is the number of modules a cohort member must finish.
const CourseModules = 4

type CourseProgress struct {
	AccountID    uuid.UUID  `json:"-" db:"account_id"`
	ModuleNumber int        `json:"module_number" db:"module_number"`
	Completed    bool       `json:"completed" db:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type CourseStatus struct {
	Modules         []CourseProgress `json:"modules"`
	CourseCompleted bool             `json:"course_completed"`
}
