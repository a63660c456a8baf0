package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
)

type contactRepository struct {
	BaseRepository
}

func NewContactRepository(base BaseRepository) repository.ContactRepository {
	return &contactRepository{base}
}

func (r *contactRepository) Enqueue(ctx context.Context, msg *model.ContactMessage) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	query := `
		INSERT INTO contact_messages (id, name, email, message, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`
	msg.ID = uuid.New()
	msg.Status = model.ContactPending
	msg.Attempts = 0
	msg.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.Name,
		msg.Email,
		msg.Message,
		msg.Status,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue contact message: %w", err)
	}
	return nil
}

// ProcessPending runs in one transaction so concurrent dispatchers skip rows already claimed.
func (r *contactRepository) ProcessPending(ctx context.Context, limit, maxAttempts int, deliver func(context.Context, *model.ContactMessage) error) (repository.DeliveryStats, error) {
	var stats repository.DeliveryStats

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var msgs []*model.ContactMessage
		err := tx.SelectContext(ctx, &msgs, `
			SELECT id, name, email, message, status, attempts, last_error, created_at, sent_at
			FROM contact_messages
			WHERE status = 'pending' AND attempts < $1
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, maxAttempts, limit)
		if err != nil {
			return fmt.Errorf("failed to lock pending messages: %w", err)
		}

		for _, msg := range msgs {
			if derr := deliver(ctx, msg); derr != nil {
				stats.Failed++
				errMsg := derr.Error()
				status := model.ContactPending
				if msg.Attempts+1 >= maxAttempts {
					status = model.ContactFailed
				}
				if _, err := tx.ExecContext(ctx, `
					UPDATE contact_messages
					SET attempts = attempts + 1, last_error = $2, status = $3
					WHERE id = $1
				`, msg.ID, errMsg, status); err != nil {
					return fmt.Errorf("failed to record delivery failure: %w", err)
				}
				continue
			}

			stats.Sent++
			if _, err := tx.ExecContext(ctx, `
				UPDATE contact_messages
				SET attempts = attempts + 1, status = 'sent', sent_at = NOW(), last_error = NULL
				WHERE id = $1
			`, msg.ID); err != nil {
				return fmt.Errorf("failed to mark message sent: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return repository.DeliveryStats{}, err
	}
	return stats, nil
}

func (r *contactRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM contact_messages
		WHERE status = 'sent'
		AND sent_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent messages: %w", err)
	}

	return result.RowsAffected()
}
