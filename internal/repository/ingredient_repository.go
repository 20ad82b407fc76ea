package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mfolsen/brewstock/internal/domain"
)

type ingredientRepository struct {
	db DB
}

// NewIngredientRepository wires a repository over a pool or transaction.
func NewIngredientRepository(database DB) IngredientRepository {
	return &ingredientRepository{db: database}
}

const ingredientColumns = `id, name, unit, unit_cost, stock_quantity, created_at, updated_at`

func scanIngredient(row pgx.Row) (domain.Ingredient, error) {
	var i domain.Ingredient
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Unit,
		&i.UnitCost,
		&i.StockQuantity,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ingredient{}, ErrNotFound
	}
	if err != nil {
		return domain.Ingredient{}, fmt.Errorf("failed to scan ingredient: %w", err)
	}
	return i, nil
}

func (r *ingredientRepository) Create(ctx context.Context, ingredient domain.Ingredient) (domain.Ingredient, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO ingredients (id, name, unit, unit_cost, stock_quantity)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+ingredientColumns,
		ingredient.ID,
		ingredient.Name,
		ingredient.Unit,
		ingredient.UnitCost,
		ingredient.StockQuantity,
	)
	created, err := scanIngredient(row)
	if err != nil {
		return domain.Ingredient{}, fmt.Errorf("failed to create ingredient: %w", err)
	}
	return created, nil
}

func (r *ingredientRepository) GetByName(ctx context.Context, name string) (domain.Ingredient, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+ingredientColumns+` FROM ingredients WHERE lower(name) = lower(trim($1))`,
		name,
	)
	return scanIngredient(row)
}

func (r *ingredientRepository) List(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+ingredientColumns+` FROM ingredients ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := []domain.Ingredient{}
	for rows.Next() {
		ingredient, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ingredient)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingredients: %w", err)
	}
	return ingredients, nil
}

func (r *ingredientRepository) Upsert(ctx context.Context, ingredient domain.Ingredient) (domain.Ingredient, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO ingredients (id, name, unit, unit_cost, stock_quantity)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE
		 SET unit = EXCLUDED.unit,
		     unit_cost = EXCLUDED.unit_cost,
		     stock_quantity = EXCLUDED.stock_quantity,
		     updated_at = now()
		 RETURNING `+ingredientColumns,
		ingredient.ID,
		ingredient.Name,
		ingredient.Unit,
		ingredient.UnitCost,
		ingredient.StockQuantity,
	)
	upserted, err := scanIngredient(row)
	if err != nil {
		return domain.Ingredient{}, fmt.Errorf("failed to upsert ingredient: %w", err)
	}
	return upserted, nil
}
