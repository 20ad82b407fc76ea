package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mfolsen/brewstock/internal/domain"
)

type savedMappingRepository struct {
	db DB
}

// NewSavedMappingRepository wires a repository over a pool or transaction.
func NewSavedMappingRepository(database DB) SavedMappingRepository {
	return &savedMappingRepository{db: database}
}

func (r *savedMappingRepository) Save(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, m domain.FieldMapping) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO saved_mappings (user_id, target, mapping)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, target) DO UPDATE
		 SET mapping = EXCLUDED.mapping, updated_at = now()`,
		userID,
		target,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

func (r *savedMappingRepository) Load(ctx context.Context, userID uuid.UUID, target domain.ImportTarget) (domain.FieldMapping, bool, error) {
	var payload []byte
	err := r.db.QueryRow(
		ctx,
		`SELECT mapping FROM saved_mappings WHERE user_id = $1 AND target = $2`,
		userID,
		target,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load mapping: %w", err)
	}

	var m domain.FieldMapping
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, false, fmt.Errorf("failed to decode mapping: %w", err)
	}
	return m, true, nil
}
