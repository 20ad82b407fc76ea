package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mfolsen/brewstock/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type productRepository struct {
	db DB
}

// NewProductRepository wires a repository over a pool or transaction.
func NewProductRepository(database DB) ProductRepository {
	return &productRepository{db: database}
}

const productColumns = `id, name, category, sale_price, unit_cost, stock_quantity, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.SalePrice,
		&p.UnitCost,
		&p.StockQuantity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to scan product: %w", err)
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO products (id, name, category, sale_price, unit_cost, stock_quantity)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+productColumns,
		product.ID,
		product.Name,
		product.Category,
		product.SalePrice,
		product.UnitCost,
		product.StockQuantity,
	)
	created, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)
	return scanProduct(row)
}

func (r *productRepository) GetByName(ctx context.Context, name string) (domain.Product, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+productColumns+` FROM products WHERE lower(name) = lower(trim($1))`,
		name,
	)
	return scanProduct(row)
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+productColumns+` FROM products ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (domain.Product, error) {
	row := r.db.QueryRow(
		ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		id,
		delta,
	)
	updated, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to adjust stock: %w", err)
	}
	return updated, nil
}
