package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nextlogic/remix-api/internal/email"
	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/pkg/circuitbreaker"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

type MailDispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	From         string
	To           string
}

// MailDispatcher drains the contact outbox into the mailer.
type MailDispatcher struct {
	repo    repository.ContactRepository
	mailer  email.Mailer
	breaker *circuitbreaker.CircuitBreaker
	config  MailDispatcherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewMailDispatcher(
	repo repository.ContactRepository,
	mailer email.Mailer,
	config MailDispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *MailDispatcher {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}

	return &MailDispatcher{
		repo:   repo,
		mailer: mailer,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "mail",
			MaxFailures: 3,
			Timeout:     time.Minute,
		}),
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (d *MailDispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("Starting mail dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Shutting down mail dispatcher")
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Error(err, "Failed to dispatch contact mail")
			}
		}
	}
}

// RunOnce delivers one batch. While the breaker is open the batch is skipped
// so messages keep their remaining attempts.
func (d *MailDispatcher) RunOnce(ctx context.Context) (repository.DeliveryStats, error) {
	if d.breaker.Open() {
		d.logger.Warn("mail breaker open, skipping batch")
		return repository.DeliveryStats{}, nil
	}

	timer := prometheus.NewTimer(d.metrics.MailLatency)
	defer timer.ObserveDuration()

	stats, err := d.repo.ProcessPending(ctx, d.config.BatchSize, d.config.MaxAttempts, d.deliver)
	if err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("process_contact_messages", "error").Inc()
		return stats, fmt.Errorf("failed to process contact messages: %w", err)
	}
	d.metrics.DatabaseOperations.WithLabelValues("process_contact_messages", "success").Inc()
	d.metrics.MailDelivered.Add(float64(stats.Sent))
	d.metrics.MailFailed.Add(float64(stats.Failed))

	if stats.Sent+stats.Failed > 0 {
		d.logger.Info("contact mail batch done", "sent", stats.Sent, "failed", stats.Failed)
	}
	return stats, nil
}

func (d *MailDispatcher) deliver(ctx context.Context, msg *model.ContactMessage) error {
	err := d.breaker.Execute(func() error {
		return d.mailer.Send(ctx, email.FromContact(msg, d.config.From, d.config.To))
	})
	if err != nil && !errors.Is(err, circuitbreaker.ErrOpen) {
		d.logger.Error(err, "Failed to send contact message",
			"message_id", msg.ID.String(),
			"attempt", msg.Attempts+1)
	}
	return err
}
