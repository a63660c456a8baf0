package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/internal/service/usage"
	"github.com/nextlogic/remix-api/pkg/logger"
)

var (
	ErrCodeNotFound    = errors.New("access code not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrUnknownTool     = errors.New("unknown tool")
)

const maxCodeAttempts = 5

// CohortCache is told when an allow-list changes.
type CohortCache interface {
	InvalidateCohort(code string)
}

type Service struct {
	accounts repository.AccountRepository
	cohorts  repository.CohortRepository
	usage    usage.Recorder
	cache    CohortCache
	logger   *logger.Logger
}

func NewService(accounts repository.AccountRepository, cohorts repository.CohortRepository,
	usage usage.Recorder, cache CohortCache, log *logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		cohorts:  cohorts,
		usage:    usage,
		cache:    cache,
		logger:   log,
	}
}

// NewAccessCode returns 8 upper-case hex characters.
func NewAccessCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateAccessCode issues a new cohort code with every free tool enabled.
func (s *Service) CreateAccessCode(ctx context.Context, adminID uuid.UUID, schoolName string) (*model.AccessCode, error) {
	schoolName = strings.TrimSpace(schoolName)
	if schoolName == "" {
		schoolName = "Default School"
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := &model.AccessCode{
			Code:       NewAccessCode(),
			CreatedBy:  adminID,
			SchoolName: schoolName,
			Active:     true,
		}
		err := s.cohorts.CreateAccessCode(ctx, code, model.FreeToolIDs())
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create access code: %w", err)
		}

		s.logger.Info("access code created",
			"admin_id", adminID.String(),
			"code", code.Code)
		return code, nil
	}
	return nil, fmt.Errorf("failed to allocate an access code after %d attempts", maxCodeAttempts)
}

func (s *Service) ListAccessCodes(ctx context.Context, adminID uuid.UUID) ([]*model.AccessCode, error) {
	codes, err := s.cohorts.ListAccessCodes(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access codes: %w", err)
	}
	return codes, nil
}

// ownedCode hides codes of other admins behind ErrCodeNotFound.
func (s *Service) ownedCode(ctx context.Context, adminID uuid.UUID, code string) (*model.AccessCode, error) {
	ac, err := s.cohorts.GetAccessCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access code: %w", err)
	}
	if ac.CreatedBy != adminID {
		return nil, ErrCodeNotFound
	}
	return ac, nil
}

// Tools lists the whole registry with the cohort's enabled flag.
func (s *Service) Tools(ctx context.Context, adminID uuid.UUID, code string) ([]model.ToolSetting, error) {
	ac, err := s.ownedCode(ctx, adminID, code)
	if err != nil {
		return nil, err
	}

	enabled, err := s.cohorts.EnabledTools(ctx, ac.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to load tools: %w", err)
	}
	on := make(map[string]bool, len(enabled))
	for _, t := range enabled {
		on[t] = true
	}

	tools := model.Tools()
	settings := make([]model.ToolSetting, 0, len(tools))
	for _, t := range tools {
		settings = append(settings, model.ToolSetting{Tool: t.ID, Premium: t.Premium, Enabled: on[t.ID]})
	}
	return settings, nil
}

// SetTools replaces the cohort allow-list. Every name must be a registry tool.
func (s *Service) SetTools(ctx context.Context, adminID uuid.UUID, code string, tools []string) ([]model.ToolSetting, error) {
	ac, err := s.ownedCode(ctx, adminID, code)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(tools))
	unique := make([]string, 0, len(tools))
	for _, t := range tools {
		if _, ok := model.LookupTool(t); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, t)
		}
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}

	if err := s.cohorts.SetTools(ctx, ac.Code, unique); err != nil {
		return nil, fmt.Errorf("failed to update tools: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidateCohort(ac.Code)
	}

	s.logger.Info("cohort tools updated",
		"admin_id", adminID.String(),
		"code", ac.Code,
		"enabled", len(unique))
	return s.Tools(ctx, adminID, ac.Code)
}

func (s *Service) Students(ctx context.Context, adminID uuid.UUID) ([]*model.StudentActivity, error) {
	students, err := s.accounts.ListStudentsByCreator(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	if students == nil {
		students = []*model.StudentActivity{}
	}
	return students, nil
}

// StudentHistory returns the newest usage of a student on one of the admin's codes.
func (s *Service) StudentHistory(ctx context.Context, adminID, studentID uuid.UUID) ([]model.HistoryEntry, error) {
	student, err := s.accounts.Get(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	if !student.InCohort() {
		return nil, ErrStudentNotFound
	}
	if _, err := s.ownedCode(ctx, adminID, *student.AccessCode); err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	return s.usage.History(ctx, studentID, usage.DefaultHistoryLimit)
}
