package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

// DefaultHistoryLimit bounds the admin history view.
const DefaultHistoryLimit = 50

type Recorder interface {
	Record(ctx context.Context, accountID uuid.UUID, tool, input, output string) (int64, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]model.HistoryEntry, error)
}

type Service struct {
	repo    repository.UsageRepository
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(repo repository.UsageRepository, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{repo: repo, metrics: m, logger: log}
}

// Record appends one usage row. A failure is logged and counted here; callers
// are expected to carry on with their response.
func (s *Service) Record(ctx context.Context, accountID uuid.UUID, tool, input, output string) (int64, error) {
	record := &model.UsageRecord{
		AccountID:  accountID,
		Tool:       tool,
		InputText:  input,
		OutputText: output,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if s.metrics != nil {
			s.metrics.UsageRecordErrs.Inc()
		}
		s.logger.Error(err, "failed to record usage",
			"account_id", accountID.String(),
			"tool", tool)
		return 0, fmt.Errorf("failed to record usage: %w", err)
	}
	return record.ID, nil
}

func (s *Service) History(ctx context.Context, accountID uuid.UUID, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	records, err := s.repo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	entries := make([]model.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.HistoryEntry())
	}
	return entries, nil
}
