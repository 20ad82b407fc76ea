package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sale records one sold line item. Profit is derived server-side from the
// product's unit cost at the time of the sale.
type Sale struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	SalePrice   float64   `json:"sale_price"`
	Profit      float64   `json:"profit"`
	SoldAt      time.Time `json:"sold_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSale creates a sale against a product, deriving profit from unit cost.
func NewSale(product Product, quantity int, salePrice float64, soldAt time.Time) Sale {
	if soldAt.IsZero() {
		soldAt = time.Now()
	}
	return Sale{
		ID:          uuid.New(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		SalePrice:   salePrice,
		Profit:      (salePrice - product.UnitCost) * float64(quantity),
		SoldAt:      soldAt,
		CreatedAt:   time.Now(),
	}
}

// Total returns the gross revenue for the sale line.
func (s Sale) Total() float64 {
	return s.SalePrice * float64(s.Quantity)
}
