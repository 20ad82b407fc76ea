package repository

import (
	"context"
	"fmt"

	"github.com/mfolsen/brewstock/internal/domain"
)

type saleRepository struct {
	db DB
}

// NewSaleRepository wires a repository over a pool or transaction.
func NewSaleRepository(database DB) SaleRepository {
	return &saleRepository{db: database}
}

func (r *saleRepository) Create(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO sales (id, product_id, product_name, quantity, sale_price, profit, sold_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, product_id, product_name, quantity, sale_price, profit, sold_at, created_at`,
		sale.ID,
		sale.ProductID,
		sale.ProductName,
		sale.Quantity,
		sale.SalePrice,
		sale.Profit,
		sale.SoldAt,
	)

	var created domain.Sale
	if err := row.Scan(
		&created.ID,
		&created.ProductID,
		&created.ProductName,
		&created.Quantity,
		&created.SalePrice,
		&created.Profit,
		&created.SoldAt,
		&created.CreatedAt,
	); err != nil {
		return domain.Sale{}, fmt.Errorf("failed to create sale: %w", err)
	}
	return created, nil
}

func (r *saleRepository) List(ctx context.Context, limit, offset int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, product_id, product_name, quantity, sale_price, profit, sold_at, created_at
		 FROM sales
		 ORDER BY sold_at DESC
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []domain.Sale{}
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(
			&sale.ID,
			&sale.ProductID,
			&sale.ProductName,
			&sale.Quantity,
			&sale.SalePrice,
			&sale.Profit,
			&sale.SoldAt,
			&sale.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales: %w", err)
	}
	return sales, nil
}
