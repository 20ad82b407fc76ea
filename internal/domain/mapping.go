package domain

import "time"

// ImportTarget selects which record type a bulk import feeds.
type ImportTarget string

const (
	ImportTargetSales       ImportTarget = "sales"
	ImportTargetIngredients ImportTarget = "ingredients"
)

// Valid reports whether the target names a known import destination.
func (t ImportTarget) Valid() bool {
	return t == ImportTargetSales || t == ImportTargetIngredients
}

// Field describes one logical column the import pipeline can populate.
type Field struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

var salesFields = []Field{
	{Key: "product_name", Label: "Product Name", Required: true},
	{Key: "quantity_sold", Label: "Quantity Sold", Required: true},
	{Key: "sale_price", Label: "Sale Price", Required: true},
	{Key: "sale_date", Label: "Sale Date", Required: false},
}

var ingredientFields = []Field{
	{Key: "ingredient_name", Label: "Ingredient Name", Required: true},
	{Key: "unit", Label: "Unit", Required: true},
	{Key: "unit_cost", Label: "Unit Cost", Required: true},
	{Key: "quantity_in_stock", Label: "Quantity In Stock", Required: false},
}

// FieldsFor returns the logical field catalog for an import target.
func FieldsFor(target ImportTarget) []Field {
	switch target {
	case ImportTargetIngredients:
		return ingredientFields
	default:
		return salesFields
	}
}

// RequiredFieldsFor returns only the required keys for an import target.
func RequiredFieldsFor(target ImportTarget) []string {
	var keys []string
	for _, field := range FieldsFor(target) {
		if field.Required {
			keys = append(keys, field.Key)
		}
	}
	return keys
}

// FieldMapping associates logical field keys with raw column headers from an
// uploaded file. An empty string means the field is unmapped.
type FieldMapping map[string]string

// Clone returns an independent copy of the mapping.
func (m FieldMapping) Clone() FieldMapping {
	if m == nil {
		return nil
	}
	copied := make(FieldMapping, len(m))
	for key, header := range m {
		copied[key] = header
	}
	return copied
}

// StoredMapping is a persisted, reusable column mapping for one header shape.
type StoredMapping struct {
	SavedAt time.Time    `json:"saved_at"`
	Headers []string     `json:"headers"`
	Mapping FieldMapping `json:"mapping"`
}
