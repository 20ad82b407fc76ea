package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ingredient is a raw material tracked for stock and cost purposes.
type Ingredient struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	UnitCost      float64   `json:"unit_cost"`
	StockQuantity float64   `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewIngredient creates an ingredient with a fresh identifier.
func NewIngredient(name, unit string, unitCost, stock float64) Ingredient {
	now := time.Now()
	return Ingredient{
		ID:            uuid.New(),
		Name:          name,
		Unit:          unit,
		UnitCost:      unitCost,
		StockQuantity: stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
