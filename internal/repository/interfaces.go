package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mfolsen/brewstock/internal/domain"
)

// DB is the query surface repositories run on. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so the same repository code serves pooled queries
// and transactions.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tx bundles the repositories an import commit mutates, bound to one
// database transaction.
type Tx struct {
	Products    ProductRepository
	Ingredients IngredientRepository
	Sales       SaleRepository
	Receipts    ImportReceiptRepository
}

// TxRunner runs fn against transaction-bound repositories. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// ProductRepository defines product and stock operations.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Product, error)
	GetByName(ctx context.Context, name string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	// AdjustStock applies a delta to the product's stock on hand and
	// returns the updated row.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (domain.Product, error)
}

// IngredientRepository defines ingredient operations. Upsert matches by
// name so repeated bulk imports refresh cost and stock instead of
// duplicating rows.
type IngredientRepository interface {
	Create(ctx context.Context, ingredient domain.Ingredient) (domain.Ingredient, error)
	GetByName(ctx context.Context, name string) (domain.Ingredient, error)
	List(ctx context.Context) ([]domain.Ingredient, error)
	Upsert(ctx context.Context, ingredient domain.Ingredient) (domain.Ingredient, error)
}

// SaleRepository defines sale line operations.
type SaleRepository interface {
	Create(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	List(ctx context.Context, limit, offset int) ([]domain.Sale, error)
}

// ImportReceiptRepository stores committed-import receipts keyed by
// idempotency key. A repeated key replays its receipt.
type ImportReceiptRepository interface {
	Create(ctx context.Context, receipt domain.ImportReceipt) (domain.ImportReceipt, error)
	GetByKey(ctx context.Context, key string) (domain.ImportReceipt, bool, error)
}

// SavedMappingRepository mirrors client column mappings server-side.
type SavedMappingRepository interface {
	Save(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, m domain.FieldMapping) error
	Load(ctx context.Context, userID uuid.UUID, target domain.ImportTarget) (domain.FieldMapping, bool, error)
}

// ImportLogRepository stores row-level import errors for observability.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, fileName string, limit, offset int) ([]domain.ImportLogEntry, error)
}
