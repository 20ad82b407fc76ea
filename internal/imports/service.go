package imports

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/mfolsen/brewstock/internal/domain"
	"github.com/mfolsen/brewstock/internal/repository"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoHeaders is returned when no header row can be detected.
	ErrNoHeaders = errors.New("no header row detected")
	// ErrMissingIdempotencyKey rejects a commit without a dedup key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"02/01/2006",
	}
)

// Service implements the server side of the import pipeline: header
// extraction, mapped preview, and idempotent commit.
type Service struct {
	products repository.ProductRepository
	receipts repository.ImportReceiptRepository
	mappings repository.SavedMappingRepository
	logs     repository.ImportLogRepository
	tx       repository.TxRunner
}

// NewService wires the import service. Sale and ingredient writes happen
// through the TxRunner's transaction-bound repositories, so only the
// read-side and bookkeeping repositories are held directly.
func NewService(
	products repository.ProductRepository,
	receipts repository.ImportReceiptRepository,
	mappings repository.SavedMappingRepository,
	logs repository.ImportLogRepository,
	tx repository.TxRunner,
) *Service {
	return &Service{
		products: products,
		receipts: receipts,
		mappings: mappings,
		logs:     logs,
		tx:       tx,
	}
}

// Request describes an uploaded file.
type Request struct {
	UserID   uuid.UUID
	Target   domain.ImportTarget
	FileName string
	Data     io.Reader
}

// PreviewRequest describes a non-committing dry run.
type PreviewRequest struct {
	Request
	Mapping domain.FieldMapping
	Limit   int
}

// CommitRequest describes a confirmed, idempotent import.
type CommitRequest struct {
	Request
	Mapping        domain.FieldMapping
	IdempotencyKey string
}

type tableData struct {
	headers []string
	rows    [][]string
}

type resolvedRow struct {
	number int
	values map[string]string
}

// ExtractHeaders parses the upload far enough to return its column headers.
func (s *Service) ExtractHeaders(ctx context.Context, req Request) ([]string, error) {
	table, err := s.readTable(req)
	if err != nil {
		return nil, err
	}
	return table.headers, nil
}

// Preview resolves rows through the mapping without persisting anything.
// Rows whose quantity would outrun the product's stock on hand are flagged;
// the flag is advisory and does not block a commit.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (domain.ImportPreview, error) {
	result := domain.ImportPreview{Target: req.Target, Rows: []domain.PreviewRow{}}

	table, err := s.readTable(req.Request)
	if err != nil {
		return result, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	columns := columnIndexes(table.headers, req.Mapping)
	result.TotalRows = len(table.rows)

	switch req.Target {
	case domain.ImportTargetIngredients:
		s.previewIngredients(table, columns, limit, &result)
	default:
		s.previewSales(ctx, table, columns, limit, &result)
	}

	return result, nil
}

func (s *Service) previewSales(ctx context.Context, table tableData, columns map[string]int, limit int, result *domain.ImportPreview) {
	products := newProductCache(s.products)
	allocated := map[string]int{}

	for rowIdx, row := range table.rows {
		resolved := resolveRow(rowIdx, row, table.headers, columns)
		previewRow := domain.PreviewRow{RowNumber: resolved.number, Values: resolved.values}

		record, rowErrs := parseSalesRow(resolved)
		if len(rowErrs) == 0 {
			product, found := products.lookup(ctx, record.productName)
			if !found {
				rowErrs = append(rowErrs, fmt.Sprintf("unknown product %q", record.productName))
			} else {
				result.TotalSales += record.salePrice * float64(record.quantity)
				result.TotalProfit += (record.salePrice - product.UnitCost) * float64(record.quantity)

				remaining := product.StockQuantity - allocated[product.Name]
				if record.quantity > remaining {
					previewRow.ExceedsStock = true
					if remaining > 0 {
						previewRow.MaxSellable = remaining
					}
				}
				allocated[product.Name] += record.quantity
			}
		}

		if len(rowErrs) > 0 {
			previewRow.Errors = rowErrs
			result.InvalidRows++
		}
		if rowIdx < limit {
			result.Rows = append(result.Rows, previewRow)
		}
	}

	if result.TotalSales > 0 {
		result.AvgProfitMargin = result.TotalProfit / result.TotalSales
	}
}

func (s *Service) previewIngredients(table tableData, columns map[string]int, limit int, result *domain.ImportPreview) {
	for rowIdx, row := range table.rows {
		resolved := resolveRow(rowIdx, row, table.headers, columns)
		previewRow := domain.PreviewRow{RowNumber: resolved.number, Values: resolved.values}

		record, rowErrs := parseIngredientRow(resolved)
		if len(rowErrs) == 0 {
			quantity := record.stockQuantity
			if quantity == 0 {
				quantity = 1
			}
			result.TotalCost += record.unitCost * quantity
		} else {
			previewRow.Errors = rowErrs
			result.InvalidRows++
		}

		if rowIdx < limit {
			result.Rows = append(result.Rows, previewRow)
		}
	}
}

// Commit persists the mapped rows. The idempotency key is checked against
// stored receipts first: a repeated key replays the prior receipt without
// importing again. A sales row demanding more than the available stock
// rejects the whole commit so stock never goes negative. The imported rows
// and their receipt land in a single transaction, so a failure anywhere
// leaves nothing behind and a retry with the same key starts clean.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (domain.CommitResult, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return domain.CommitResult{}, ErrMissingIdempotencyKey
	}

	if receipt, found, err := s.receipts.GetByKey(ctx, req.IdempotencyKey); err != nil {
		return domain.CommitResult{}, fmt.Errorf("failed to check import receipts: %w", err)
	} else if found {
		return domain.CommitResult{ImportedCount: receipt.ImportedCount, Replayed: true}, nil
	}

	table, err := s.readTable(req.Request)
	if err != nil {
		return domain.CommitResult{}, err
	}

	columns := columnIndexes(table.headers, req.Mapping)

	var result domain.CommitResult
	err = s.tx.InTx(ctx, func(repos repository.Tx) error {
		var txErr error
		switch req.Target {
		case domain.ImportTargetIngredients:
			result, txErr = s.commitIngredients(ctx, repos, req, table, columns)
		default:
			result, txErr = s.commitSales(ctx, repos, req, table, columns)
		}
		if txErr != nil {
			return txErr
		}

		receipt := domain.ImportReceipt{
			ID:             uuid.New(),
			IdempotencyKey: req.IdempotencyKey,
			UserID:         req.UserID,
			Target:         req.Target,
			FileName:       req.FileName,
			ImportedCount:  result.ImportedCount,
			CreatedAt:      time.Now(),
		}
		if _, txErr := repos.Receipts.Create(ctx, receipt); txErr != nil {
			return fmt.Errorf("failed to store import receipt: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return domain.CommitResult{}, err
	}

	return result, nil
}

// commitSales writes sale rows through the transaction-bound repositories.
// Row errors are logged via s.logs outside the transaction so they survive
// a rollback.
func (s *Service) commitSales(ctx context.Context, repos repository.Tx, req CommitRequest, table tableData, columns map[string]int) (domain.CommitResult, error) {
	var result domain.CommitResult

	products := newProductCache(repos.Products)

	type stagedSale struct {
		row     int
		record  salesRecord
		product domain.Product
	}

	var staged []stagedSale
	demand := map[string]int{}

	for rowIdx, row := range table.rows {
		resolved := resolveRow(rowIdx, row, table.headers, columns)

		record, rowErrs := parseSalesRow(resolved)
		if len(rowErrs) == 0 {
			product, found := products.lookup(ctx, record.productName)
			if !found {
				rowErrs = append(rowErrs, fmt.Sprintf("unknown product %q", record.productName))
			} else {
				demand[product.Name] += record.quantity
				staged = append(staged, stagedSale{row: resolved.number, record: record, product: product})
			}
		}

		if len(rowErrs) > 0 {
			result.SkippedRows++
			s.logRowError(ctx, req.Request, resolved.number, strings.Join(rowErrs, "; "))
		}
	}

	for name, quantity := range demand {
		product, _ := products.lookup(ctx, name)
		if quantity > product.StockQuantity {
			return domain.CommitResult{}, fmt.Errorf("insufficient stock for maximum sellable quantity %d", product.StockQuantity)
		}
	}

	for _, item := range staged {
		sale := domain.NewSale(item.product, item.record.quantity, item.record.salePrice, item.record.soldAt)
		if _, err := repos.Sales.Create(ctx, sale); err != nil {
			return domain.CommitResult{}, fmt.Errorf("failed to insert sale for row %d: %w", item.row, err)
		}
		if _, err := repos.Products.AdjustStock(ctx, item.product.ID, -item.record.quantity); err != nil {
			return domain.CommitResult{}, fmt.Errorf("failed to decrement stock for row %d: %w", item.row, err)
		}
		result.ImportedCount++
	}

	return result, nil
}

func (s *Service) commitIngredients(ctx context.Context, repos repository.Tx, req CommitRequest, table tableData, columns map[string]int) (domain.CommitResult, error) {
	var result domain.CommitResult

	for rowIdx, row := range table.rows {
		resolved := resolveRow(rowIdx, row, table.headers, columns)

		record, rowErrs := parseIngredientRow(resolved)
		if len(rowErrs) > 0 {
			result.SkippedRows++
			s.logRowError(ctx, req.Request, resolved.number, strings.Join(rowErrs, "; "))
			continue
		}

		ingredient := domain.NewIngredient(record.name, record.unit, record.unitCost, record.stockQuantity)
		if _, err := repos.Ingredients.Upsert(ctx, ingredient); err != nil {
			return domain.CommitResult{}, fmt.Errorf("failed to upsert ingredient row %d: %w", resolved.number, err)
		}
		result.ImportedCount++
	}

	return result, nil
}

// SaveMapping mirrors a client's confirmed column mapping server-side.
func (s *Service) SaveMapping(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, m domain.FieldMapping) error {
	if userID == uuid.Nil {
		return errors.New("user id is required")
	}
	if !target.Valid() {
		return fmt.Errorf("unknown import target %q", target)
	}
	if err := s.mappings.Save(ctx, userID, target, m); err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

func (s *Service) readTable(req Request) (tableData, error) {
	if req.UserID == uuid.Nil {
		return tableData{}, errors.New("user id is required")
	}
	if !req.Target.Valid() {
		return tableData{}, fmt.Errorf("unknown import target %q", req.Target)
	}
	if req.Data == nil {
		return tableData{}, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return tableData{}, errors.New("file is empty")
	}

	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return tableData{}, err
	}
	if len(table.headers) == 0 {
		return tableData{}, ErrNoHeaders
	}
	return table, nil
}

func (s *Service) logRowError(ctx context.Context, req Request, rowNumber int, message string) {
	if s.logs == nil {
		return
	}
	entry := domain.ImportLogEntry{
		UserID:       req.UserID,
		Target:       req.Target,
		FileName:     req.FileName,
		RowNumber:    &rowNumber,
		ErrorMessage: message,
	}
	_ = s.logs.Record(ctx, entry)
}

// productCache memoizes product lookups for one request.
type productCache struct {
	repo    repository.ProductRepository
	byName  map[string]domain.Product
	missing map[string]bool
}

func newProductCache(repo repository.ProductRepository) *productCache {
	return &productCache{
		repo:    repo,
		byName:  map[string]domain.Product{},
		missing: map[string]bool{},
	}
}

func (c *productCache) lookup(ctx context.Context, name string) (domain.Product, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if product, ok := c.byName[key]; ok {
		return product, true
	}
	if c.missing[key] {
		return domain.Product{}, false
	}

	product, err := c.repo.GetByName(ctx, name)
	if err != nil {
		c.missing[key] = true
		return domain.Product{}, false
	}
	c.byName[key] = product
	c.byName[strings.ToLower(strings.TrimSpace(product.Name))] = product
	return product, true
}

func resolveRow(rowIdx int, row []string, headers []string, columns map[string]int) resolvedRow {
	values := make(map[string]string, len(columns))
	for field, col := range columns {
		if col < len(row) {
			values[field] = strings.TrimSpace(row[col])
		} else {
			values[field] = ""
		}
	}
	// +2: header row plus 1-based numbering.
	return resolvedRow{number: rowIdx + 2, values: values}
}

type salesRecord struct {
	productName string
	quantity    int
	salePrice   float64
	soldAt      time.Time
}

func parseSalesRow(resolved resolvedRow) (salesRecord, []string) {
	var record salesRecord
	var errs []string

	record.productName = resolved.values["product_name"]
	if record.productName == "" {
		errs = append(errs, "product_name is required")
	}

	quantityRaw := resolved.values["quantity_sold"]
	quantity, err := strconv.Atoi(quantityRaw)
	if err != nil || quantity <= 0 {
		errs = append(errs, fmt.Sprintf("invalid quantity %q", quantityRaw))
	}
	record.quantity = quantity

	priceRaw := strings.TrimPrefix(resolved.values["sale_price"], "$")
	price, err := strconv.ParseFloat(priceRaw, 64)
	if err != nil || price < 0 {
		errs = append(errs, fmt.Sprintf("invalid sale price %q", resolved.values["sale_price"]))
	}
	record.salePrice = price

	if raw := resolved.values["sale_date"]; raw != "" {
		soldAt, err := parseDate(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid sale date %q", raw))
		}
		record.soldAt = soldAt
	}

	return record, errs
}

type ingredientRecord struct {
	name          string
	unit          string
	unitCost      float64
	stockQuantity float64
}

func parseIngredientRow(resolved resolvedRow) (ingredientRecord, []string) {
	var record ingredientRecord
	var errs []string

	record.name = resolved.values["ingredient_name"]
	if record.name == "" {
		errs = append(errs, "ingredient_name is required")
	}

	record.unit = resolved.values["unit"]
	if record.unit == "" {
		errs = append(errs, "unit is required")
	}

	costRaw := strings.TrimPrefix(resolved.values["unit_cost"], "$")
	cost, err := strconv.ParseFloat(costRaw, 64)
	if err != nil || cost < 0 {
		errs = append(errs, fmt.Sprintf("invalid unit cost %q", resolved.values["unit_cost"]))
	}
	record.unitCost = cost

	if raw := resolved.values["quantity_in_stock"]; raw != "" {
		stock, err := strconv.ParseFloat(raw, 64)
		if err != nil || stock < 0 {
			errs = append(errs, fmt.Sprintf("invalid stock quantity %q", raw))
		}
		record.stockQuantity = stock
	}

	return record, errs
}

// columnIndexes resolves each mapped logical field to its column position,
// matching headers case-insensitively. Fields mapped to headers absent from
// the file are dropped.
func columnIndexes(headers []string, m domain.FieldMapping) map[string]int {
	positions := make(map[string]int, len(headers))
	for idx, header := range headers {
		positions[strings.ToLower(strings.TrimSpace(header))] = idx
	}

	columns := make(map[string]int, len(m))
	for field, header := range m {
		normalized := strings.ToLower(strings.TrimSpace(header))
		if normalized == "" {
			continue
		}
		if idx, ok := positions[normalized]; ok {
			columns[field] = idx
		}
	}
	return columns
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv", "":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(rows)
}

// normalizeTable treats the first non-empty row as the header row and keeps
// raw (trimmed) header labels so clients can map against what they see in
// the file.
func normalizeTable(records [][]string) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headers []string
	var dataRows [][]string

	for _, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if headers == nil {
			headers = make([]string, len(row))
			for idx, value := range row {
				headers[idx] = strings.TrimSpace(value)
			}
			continue
		}
		dataRows = append(dataRows, padRow(row, len(headers)))
	}

	if headers == nil {
		return tableData{}, ErrNoHeaders
	}

	return tableData{headers: headers, rows: dataRows}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
