package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mfolsen/brewstock/internal/domain"
)

type importReceiptRepository struct {
	db DB
}

// NewImportReceiptRepository wires a repository over a pool or transaction.
func NewImportReceiptRepository(database DB) ImportReceiptRepository {
	return &importReceiptRepository{db: database}
}

func (r *importReceiptRepository) Create(ctx context.Context, receipt domain.ImportReceipt) (domain.ImportReceipt, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO import_receipts (id, idempotency_key, user_id, target, file_name, imported_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, idempotency_key, user_id, target, file_name, imported_count, created_at`,
		receipt.ID,
		receipt.IdempotencyKey,
		receipt.UserID,
		receipt.Target,
		receipt.FileName,
		receipt.ImportedCount,
	)

	var created domain.ImportReceipt
	if err := row.Scan(
		&created.ID,
		&created.IdempotencyKey,
		&created.UserID,
		&created.Target,
		&created.FileName,
		&created.ImportedCount,
		&created.CreatedAt,
	); err != nil {
		return domain.ImportReceipt{}, fmt.Errorf("failed to create import receipt: %w", err)
	}
	return created, nil
}

func (r *importReceiptRepository) GetByKey(ctx context.Context, key string) (domain.ImportReceipt, bool, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT id, idempotency_key, user_id, target, file_name, imported_count, created_at
		 FROM import_receipts
		 WHERE idempotency_key = $1`,
		key,
	)

	var receipt domain.ImportReceipt
	err := row.Scan(
		&receipt.ID,
		&receipt.IdempotencyKey,
		&receipt.UserID,
		&receipt.Target,
		&receipt.FileName,
		&receipt.ImportedCount,
		&receipt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ImportReceipt{}, false, nil
	}
	if err != nil {
		return domain.ImportReceipt{}, false, fmt.Errorf("failed to load import receipt: %w", err)
	}
	return receipt, true, nil
}
