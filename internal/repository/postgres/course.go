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

type courseRepository struct {
	BaseRepository
}

func NewCourseRepository(base BaseRepository) repository.CourseRepository {
	return &courseRepository{base}
}

func (r *courseRepository) List(ctx context.Context, accountID uuid.UUID) ([]*model.CourseProgress, error) {
	query := `
		SELECT account_id, module_number, completed, completed_at
		FROM course_progress
		WHERE account_id = $1
		ORDER BY module_number
	`

	var progress []*model.CourseProgress
	if err := r.db.SelectContext(ctx, &progress, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list course progress: %w", err)
	}
	return progress, nil
}

func (r *courseRepository) CompleteModule(ctx context.Context, accountID uuid.UUID, module int, now time.Time) (bool, error) {
	var done bool
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := markModule(ctx, tx, accountID, module, now); err != nil {
			return err
		}

		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM course_progress WHERE account_id = $1 AND completed`,
			accountID); err != nil {
			return fmt.Errorf("failed to count completed modules: %w", err)
		}
		if count < model.CourseModules {
			return nil
		}

		done = true
		return markCourse(ctx, tx, accountID, now)
	})
	return done, err
}

func (r *courseRepository) CompleteAll(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for module := 1; module <= model.CourseModules; module++ {
			if err := markModule(ctx, tx, accountID, module, now); err != nil {
				return err
			}
		}
		return markCourse(ctx, tx, accountID, now)
	})
}

func markModule(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, module int, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO course_progress (account_id, module_number, completed, completed_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (account_id, module_number)
		DO UPDATE SET completed = TRUE, completed_at = COALESCE(course_progress.completed_at, EXCLUDED.completed_at)
	`, accountID, module, now)
	if err != nil {
		return fmt.Errorf("failed to complete module %d: %w", module, err)
	}
	return nil
}

func markCourse(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, now time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE accounts SET course_completed = TRUE, updated_at = $2 WHERE id = $1`,
		accountID, now)
	if err != nil {
		return fmt.Errorf("failed to mark course completed: %w", err)
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
