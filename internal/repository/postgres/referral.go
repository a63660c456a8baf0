package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
)

const referralColumns = `id, referrer_id, referee_id, code_used, status, reward_given, created_at, completed_at`

type referralRepository struct {
	BaseRepository
}

func NewReferralRepository(base BaseRepository) repository.ReferralRepository {
	return &referralRepository{base}
}

func (r *referralRepository) CreatePending(ctx context.Context, referrerID, refereeID uuid.UUID, code string) (*model.ReferralRecord, error) {
	record := &model.ReferralRecord{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		CodeUsed:   code,
		Status:     model.ReferralPending,
		CreatedAt:  time.Now().UTC(),
	}

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO referrals (id, referrer_id, referee_id, code_used, status, reward_given, created_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		`, record.ID, record.ReferrerID, record.RefereeID, record.CodeUsed, record.Status, record.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicate
			}
			return fmt.Errorf("failed to insert referral: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE accounts SET referred_by = $2, updated_at = NOW() WHERE id = $1 AND referred_by IS NULL`,
			refereeID, referrerID)
		if err != nil {
			return fmt.Errorf("failed to set referred_by: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return repository.ErrDuplicate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *referralRepository) Complete(ctx context.Context, referrerID, refereeID uuid.UUID, now time.Time, reward time.Duration) (*model.ReferralRecord, error) {
	var completed *model.ReferralRecord

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var record model.ReferralRecord
		err := tx.GetContext(ctx, &record, `
			SELECT `+referralColumns+` FROM referrals
			WHERE referrer_id = $1 AND referee_id = $2 AND status = 'pending'
			FOR UPDATE
		`, referrerID, refereeID)
		if err != nil {
			if errors.Is(notFound(err), repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to lock referral: %w", err)
		}

		var referrer model.Account
		err = tx.GetContext(ctx, &referrer,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, referrerID)
		if err != nil {
			return fmt.Errorf("failed to lock referrer: %w", notFound(err))
		}

		expiresAt := referrer.RewardedExpiry(now, reward)
		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET is_premium = TRUE, premium_expires_at = $2, updated_at = $3
			WHERE id = $1
		`, referrerID, expiresAt, now); err != nil {
			return fmt.Errorf("failed to reward referrer: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE referrals SET status = 'completed', reward_given = TRUE, completed_at = $2
			WHERE id = $1
		`, record.ID, now); err != nil {
			return fmt.Errorf("failed to complete referral: %w", err)
		}

		record.Status = model.ReferralCompleted
		record.RewardGiven = true
		record.CompletedAt = &now
		completed = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (r *referralRepository) GetByReferee(ctx context.Context, refereeID uuid.UUID) (*model.ReferralRecord, error) {
	var record model.ReferralRecord
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE referee_id = $1`
	if err := r.db.GetContext(ctx, &record, query, refereeID); err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", notFound(err))
	}
	return &record, nil
}
