package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mfolsen/brewstock/internal/domain"
)

type importLogRepository struct {
	db DB
}

// NewImportLogRepository wires a repository over a pool or transaction.
func NewImportLogRepository(database DB) ImportLogRepository {
	return &importLogRepository{db: database}
}

func (r *importLogRepository) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	if r.db == nil {
		return fmt.Errorf("import log repository not initialized")
	}

	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO import_logs (user_id, target, file_name, row_number, error_message)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID,
		entry.Target,
		entry.FileName,
		rowNumber,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record import log: %w", err)
	}
	return nil
}

func (r *importLogRepository) List(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, fileName string, limit, offset int) ([]domain.ImportLogEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("import log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, target, file_name, row_number, error_message, created_at
		 FROM import_logs
		 WHERE user_id = $1
		   AND target = $2
		   AND file_name = $3
		 ORDER BY created_at DESC
		 LIMIT $4 OFFSET $5`,
		userID,
		target,
		fileName,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ImportLogEntry{}
	for rows.Next() {
		var (
			entry     domain.ImportLogEntry
			rowNumber pgtype.Int4
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Target,
			&entry.FileName,
			&rowNumber,
			&entry.ErrorMessage,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", scanErr)
		}

		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import logs: %w", rowsErr)
	}

	return logs, nil
}
