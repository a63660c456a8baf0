package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
)

const accountColumns = `id, name, email, password_hash, role, is_premium, premium_expires_at,
	uses_left, referral_code, referred_by, access_code, school, course_completed,
	stripe_subscription_id, created_at, updated_at`

type accountRepository struct {
	BaseRepository
}

func NewAccountRepository(base BaseRepository) repository.AccountRepository {
	return &accountRepository{base}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (
			id, name, email, password_hash, role, is_premium, premium_expires_at,
			uses_left, referral_code, access_code, school, course_completed,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.IsPremium,
		account.PremiumExpiresAt,
		account.UsesLeft,
		account.ReferralCode,
		account.AccessCode,
		account.School,
		account.CourseCompleted,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) getBy(ctx context.Context, q sqlx.QueryerContext, column string, value interface{}) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + column + ` = $1`

	var account model.Account
	if err := sqlx.GetContext(ctx, q, &account, query, value); err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := r.getBy(ctx, r.db, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	account, err := r.getBy(ctx, r.db, "email", email)
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return account, nil
}

func (r *accountRepository) GetByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	account, err := r.getBy(ctx, r.db, "referral_code", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get account by referral code: %w", err)
	}
	return account, nil
}

func (r *accountRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Account, error) {
	account, err := r.getBy(ctx, r.db, "stripe_subscription_id", subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account by subscription: %w", err)
	}
	return account, nil
}

func (r *accountRepository) DemotePremium(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET is_premium = FALSE, updated_at = $2
		WHERE id = $1 AND is_premium AND premium_expires_at IS NOT NULL AND premium_expires_at <= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to demote account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *accountRepository) DecrementUses(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE accounts
		SET uses_left = uses_left - 1, updated_at = NOW()
		WHERE id = $1 AND uses_left > 0
		RETURNING uses_left
	`

	var left int
	if err := r.db.QueryRowxContext(ctx, query, id).Scan(&left); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrQuotaExhausted
		}
		return 0, fmt.Errorf("failed to decrement uses: %w", err)
	}
	return left, nil
}

func (r *accountRepository) ActivatePremium(ctx context.Context, id uuid.UUID, expiresAt *time.Time, subscriptionID *string) error {
	query := `
		UPDATE accounts SET
			is_premium = TRUE,
			premium_expires_at = $2,
			stripe_subscription_id = COALESCE($3, stripe_subscription_id),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, expiresAt, subscriptionID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to activate premium: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepository) ListStudentsByCreator(ctx context.Context, adminID uuid.UUID) ([]*model.StudentActivity, error) {
	query := `
		SELECT
			a.id, a.name, a.email, a.access_code, a.course_completed, a.created_at,
			COUNT(u.id) AS total_uses,
			(SELECT lu.tool FROM usage_records lu
				WHERE lu.account_id = a.id
				ORDER BY lu.created_at DESC, lu.id DESC LIMIT 1) AS last_tool,
			MAX(u.created_at) AS last_active
		FROM accounts a
		JOIN access_codes c ON c.code = a.access_code
		LEFT JOIN usage_records u ON u.account_id = a.id
		WHERE c.created_by = $1 AND a.role = 'student'
		GROUP BY a.id
		ORDER BY a.created_at DESC
	`

	var students []*model.StudentActivity
	if err := r.db.SelectContext(ctx, &students, query, adminID); err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}
