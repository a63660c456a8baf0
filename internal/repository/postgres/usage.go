package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
)

type usageRepository struct {
	BaseRepository
}

func NewUsageRepository(base BaseRepository) repository.UsageRepository {
	return &usageRepository{base}
}

func (r *usageRepository) Create(ctx context.Context, record *model.UsageRecord) error {
	query := `
		INSERT INTO usage_records (account_id, tool, input_text, output_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		record.AccountID,
		record.Tool,
		record.InputText,
		record.OutputText,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

func (r *usageRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*model.UsageRecord, error) {
	query := `
		SELECT id, account_id, tool, input_text, output_text, created_at
		FROM usage_records
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var records []*model.UsageRecord
	if err := r.db.SelectContext(ctx, &records, query, accountID, limit); err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return records, nil
}
