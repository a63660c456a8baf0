package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/pkg/logger"
)

var (
	ErrInvalidModule  = errors.New("invalid module number")
	ErrUnknownAccount = errors.New("account not found")
)

type Service struct {
	accounts repository.AccountRepository
	progress repository.CourseRepository
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(accounts repository.AccountRepository, progress repository.CourseRepository, log *logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		progress: progress,
		logger:   log,
		now:      time.Now,
	}
}

// Status lists every module, completed or not.
func (s *Service) Status(ctx context.Context, accountID uuid.UUID) (*model.CourseStatus, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	rows, err := s.progress.List(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}

	status := &model.CourseStatus{
		Modules:         make([]model.CourseProgress, model.CourseModules),
		CourseCompleted: account.CourseCompleted,
	}
	for i := range status.Modules {
		status.Modules[i] = model.CourseProgress{AccountID: accountID, ModuleNumber: i + 1}
	}
	for _, p := range rows {
		if p.ModuleNumber >= 1 && p.ModuleNumber <= model.CourseModules {
			status.Modules[p.ModuleNumber-1] = *p
		}
	}
	return status, nil
}

func (s *Service) CompleteModule(ctx context.Context, accountID uuid.UUID, module int) (*model.CourseStatus, error) {
	if module < 1 || module > model.CourseModules {
		return nil, ErrInvalidModule
	}

	done, err := s.progress.CompleteModule(ctx, accountID, module, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete module: %w", err)
	}
	if done {
		s.logger.Info("course completed", "account_id", accountID.String())
	}
	return s.Status(ctx, accountID)
}

func (s *Service) CompleteCourse(ctx context.Context, accountID uuid.UUID) (*model.CourseStatus, error) {
	err := s.progress.CompleteAll(ctx, accountID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete course: %w", err)
	}
	s.logger.Info("course completed", "account_id", accountID.String())
	return s.Status(ctx, accountID)
}
