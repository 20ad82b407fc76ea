package domain

// PreviewRow is one resolved record of a non-committing import dry run.
type PreviewRow struct {
	RowNumber    int               `json:"row_number"`
	Values       map[string]string `json:"values"`
	Errors       []string          `json:"errors,omitempty"`
	ExceedsStock bool              `json:"exceeds_stock,omitempty"`
	MaxSellable  int               `json:"max_sellable,omitempty"`
}

// ImportPreview aggregates a dry run's totals and row-level results. Stock
// exceedance flags are advisory; they do not block a commit.
type ImportPreview struct {
	Target          ImportTarget `json:"target"`
	TotalRows       int          `json:"total_rows"`
	InvalidRows     int          `json:"invalid_rows"`
	TotalSales      float64      `json:"total_sales"`
	TotalProfit     float64      `json:"total_profit"`
	AvgProfitMargin float64      `json:"avg_profit_margin"`
	TotalCost       float64      `json:"total_cost"`
	Rows            []PreviewRow `json:"rows"`
}

// CommitResult reports the outcome of a committed import. Replayed is true
// when the idempotency key matched an existing receipt and no new rows were
// written.
type CommitResult struct {
	ImportedCount int  `json:"imported_count"`
	SkippedRows   int  `json:"skipped_rows"`
	Replayed      bool `json:"replayed"`
}
