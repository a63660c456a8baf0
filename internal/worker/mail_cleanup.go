package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/pkg/logger"
)

// MailCleanupWorker deletes delivered contact messages past their retention.
type MailCleanupWorker struct {
	repo            repository.ContactRepository
	retention       time.Duration
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewMailCleanupWorker(repo repository.ContactRepository, retention, cleanupInterval time.Duration, log *logger.Logger) *MailCleanupWorker {
	return &MailCleanupWorker{
		repo:            repo,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		logger:          log,
		now:             time.Now,
	}
}

func (w *MailCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up contact messages")
			}
		}
	}
}

func (w *MailCleanupWorker) cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up contact messages: %w", err)
	}

	if rows > 0 {
		w.logger.Info("cleaned up sent contact messages", "rows", rows, "cutoff", cutoff)
	}
	return rows, nil
}
