package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/mfolsen/brewstock/internal/db"
)

type pgxTxRunner struct {
	conn *db.Connection
}

// NewTxRunner wires a TxRunner over the connection's transaction helper.
func NewTxRunner(conn *db.Connection) TxRunner {
	return &pgxTxRunner{conn: conn}
}

func (r *pgxTxRunner) InTx(ctx context.Context, fn func(Tx) error) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(Tx{
			Products:    NewProductRepository(tx),
			Ingredients: NewIngredientRepository(tx),
			Sales:       NewSaleRepository(tx),
			Receipts:    NewImportReceiptRepository(tx),
		})
	})
}
