package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/pkg/logger"
)

type Service struct {
	repo   repository.ContactRepository
	logger *logger.Logger
}

func NewService(repo repository.ContactRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// Submit queues the message for the mail dispatcher.
func (s *Service) Submit(ctx context.Context, req *model.ContactRequest) (*model.ContactMessage, error) {
	msg := &model.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Message: strings.TrimSpace(req.Message),
	}
	if err := s.repo.Enqueue(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to queue contact message: %w", err)
	}

	s.logger.Info("contact message queued", "message_id", msg.ID.String())
	return msg, nil
}
