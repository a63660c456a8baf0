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

type cohortRepository struct {
	BaseRepository
}

func NewCohortRepository(base BaseRepository) repository.CohortRepository {
	return &cohortRepository{base}
}

// CreateAccessCode stores the code together with its initial allow-list.
func (r *cohortRepository) CreateAccessCode(ctx context.Context, code *model.AccessCode, tools []string) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO access_codes (code, created_by, school_name, active, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, code.Code, code.CreatedBy, code.SchoolName, code.Active, code.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicate
			}
			return fmt.Errorf("failed to create access code: %w", err)
		}
		return upsertTools(ctx, tx, code.Code, tools)
	})
}

func (r *cohortRepository) GetAccessCode(ctx context.Context, code string) (*model.AccessCode, error) {
	var ac model.AccessCode
	query := `SELECT code, created_by, school_name, active, created_at FROM access_codes WHERE code = $1`
	if err := r.db.GetContext(ctx, &ac, query, code); err != nil {
		return nil, fmt.Errorf("failed to get access code: %w", notFound(err))
	}
	return &ac, nil
}

func (r *cohortRepository) ListAccessCodes(ctx context.Context, createdBy uuid.UUID) ([]*model.AccessCode, error) {
	var codes []*model.AccessCode
	query := `
		SELECT code, created_by, school_name, active, created_at
		FROM access_codes
		WHERE created_by = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &codes, query, createdBy); err != nil {
		return nil, fmt.Errorf("failed to list access codes: %w", err)
	}
	return codes, nil
}

func (r *cohortRepository) EnabledTools(ctx context.Context, code string) ([]string, error) {
	var tools []string
	query := `SELECT tool FROM tool_permissions WHERE access_code = $1 AND enabled ORDER BY tool`
	if err := r.db.SelectContext(ctx, &tools, query, code); err != nil {
		return nil, fmt.Errorf("failed to list enabled tools: %w", err)
	}
	return tools, nil
}

// SetTools replaces the allow-list: every listed tool enabled, the rest disabled.
func (r *cohortRepository) SetTools(ctx context.Context, code string, tools []string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tool_permissions SET enabled = FALSE, updated_at = NOW() WHERE access_code = $1`,
			code); err != nil {
			return fmt.Errorf("failed to reset tools: %w", err)
		}
		return upsertTools(ctx, tx, code, tools)
	})
}

func upsertTools(ctx context.Context, tx *sqlx.Tx, code string, tools []string) error {
	for _, tool := range tools {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tool_permissions (access_code, tool, enabled, updated_at)
			VALUES ($1, $2, TRUE, NOW())
			ON CONFLICT (access_code, tool) DO UPDATE SET enabled = TRUE, updated_at = NOW()
		`, code, tool)
		if err != nil {
			return fmt.Errorf("failed to enable tool %s: %w", tool, err)
		}
	}
	return nil
}
