package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item with its current stock on hand.
type Product struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	SalePrice     float64   `json:"sale_price"`
	UnitCost      float64   `json:"unit_cost"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewProduct creates a product with a fresh identifier.
func NewProduct(name, category string, salePrice, unitCost float64, stock int) Product {
	now := time.Now()
	return Product{
		ID:            uuid.New(),
		Name:          name,
		Category:      category,
		SalePrice:     salePrice,
		UnitCost:      unitCost,
		StockQuantity: stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Margin returns the per-unit profit margin as a fraction of the sale price.
func (p Product) Margin() float64 {
	if p.SalePrice == 0 {
		return 0
	}
	return (p.SalePrice - p.UnitCost) / p.SalePrice
}
