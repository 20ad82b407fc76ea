package imports

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mfolsen/brewstock/internal/domain"
)

func newTestServer(f *serviceFixture) *httptest.Server {
	router := chi.NewRouter()
	NewHTTPHandler(f.service).Routes(router)
	return httptest.NewServer(router)
}

func uploadRequest(t *testing.T, url, path string, fields map[string]string, csv string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "sales.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(csv)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleExtractHeaders(t *testing.T) {
	f := newFixture()
	server := newTestServer(f)
	defer server.Close()

	req := uploadRequest(t, server.URL, "/imports/headers", map[string]string{
		"userId": uuid.NewString(),
		"target": "sales",
	}, salesCSV)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Headers []string `json:"headers"`
	}
	decodeBody(t, resp, &payload)
	if len(payload.Headers) != 4 || payload.Headers[0] != "Item name" {
		t.Fatalf("headers = %v", payload.Headers)
	}
}

func TestHandlePreviewReturnsTotals(t *testing.T) {
	latte := domain.NewProduct("Latte", "drinks", 4.50, 2.25, 10)
	mocha := domain.NewProduct("Mocha", "drinks", 5.00, 2.00, 10)
	flatWhite := domain.NewProduct("Flat White", "drinks", 4.00, 1.50, 10)
	f := newFixture(latte, mocha, flatWhite)
	server := newTestServer(f)
	defer server.Close()

	mappingJSON, _ := json.Marshal(salesMapping())
	req := uploadRequest(t, server.URL, "/imports/preview", map[string]string{
		"userId":  uuid.NewString(),
		"target":  "sales",
		"mapping": string(mappingJSON),
	}, salesCSV)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var preview domain.ImportPreview
	decodeBody(t, resp, &preview)
	if preview.TotalRows != 3 || preview.InvalidRows != 0 {
		t.Fatalf("rows = %d invalid = %d", preview.TotalRows, preview.InvalidRows)
	}
	if preview.TotalSales != 26.00 {
		t.Fatalf("total sales = %.2f", preview.TotalSales)
	}
}

func TestHandlePreviewRejectsMissingMapping(t *testing.T) {
	f := newFixture()
	server := newTestServer(f)
	defer server.Close()

	req := uploadRequest(t, server.URL, "/imports/preview", map[string]string{
		"userId": uuid.NewString(),
		"target": "sales",
	}, salesCSV)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &payload)
	if !strings.Contains(payload.Message, "mapping is required") {
		t.Fatalf("message = %q", payload.Message)
	}
}

func TestHandleCommitAndReplay(t *testing.T) {
	latte := domain.NewProduct("Latte", "drinks", 4.50, 2.25, 10)
	mocha := domain.NewProduct("Mocha", "drinks", 5.00, 2.00, 10)
	flatWhite := domain.NewProduct("Flat White", "drinks", 4.00, 1.50, 10)
	f := newFixture(latte, mocha, flatWhite)
	server := newTestServer(f)
	defer server.Close()

	mappingJSON, _ := json.Marshal(salesMapping())
	fields := map[string]string{
		"userId":         uuid.NewString(),
		"target":         "sales",
		"mapping":        string(mappingJSON),
		"idempotencyKey": "v1-filehash-metahash",
	}

	resp, err := http.DefaultClient.Do(uploadRequest(t, server.URL, "/imports/commit", fields, salesCSV))
	if err != nil {
		t.Fatalf("commit request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var result domain.CommitResult
	decodeBody(t, resp, &result)
	if result.ImportedCount != 3 || result.Replayed {
		t.Fatalf("result = %+v", result)
	}

	resp, err = http.DefaultClient.Do(uploadRequest(t, server.URL, "/imports/commit", fields, salesCSV))
	if err != nil {
		t.Fatalf("replay request failed: %v", err)
	}
	var replayed domain.CommitResult
	decodeBody(t, resp, &replayed)
	if !replayed.Replayed || replayed.ImportedCount != 3 {
		t.Fatalf("replay result = %+v", replayed)
	}
	if len(f.sales.created) != 3 {
		t.Fatalf("expected 3 sale rows after replay, got %d", len(f.sales.created))
	}
}

func TestHandleCommitInsufficientStockConflict(t *testing.T) {
	latte := domain.NewProduct("Latte", "drinks", 4.50, 2.25, 1)
	mocha := domain.NewProduct("Mocha", "drinks", 5.00, 2.00, 10)
	flatWhite := domain.NewProduct("Flat White", "drinks", 4.00, 1.50, 10)
	f := newFixture(latte, mocha, flatWhite)
	server := newTestServer(f)
	defer server.Close()

	mappingJSON, _ := json.Marshal(salesMapping())
	req := uploadRequest(t, server.URL, "/imports/commit", map[string]string{
		"userId":         uuid.NewString(),
		"target":         "sales",
		"mapping":        string(mappingJSON),
		"idempotencyKey": "v1-filehash-metahash",
	}, salesCSV)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &payload)
	if !strings.Contains(payload.Message, "insufficient stock for maximum sellable quantity 1") {
		t.Fatalf("message = %q", payload.Message)
	}
}

func TestHandleSaveMapping(t *testing.T) {
	f := newFixture()
	server := newTestServer(f)
	defer server.Close()

	userID := uuid.New()
	body := map[string]any{
		"userId": userID.String(),
		"target": "sales",
		"mappings": []map[string]string{
			{"logicalField": "product_name", "rawHeader": "Item name"},
			{"logicalField": "quantity_sold", "rawHeader": "Quantity"},
		},
	}
	payload, _ := json.Marshal(body)

	resp, err := http.Post(server.URL+"/mappings", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	saved, found, err := f.mappings.Load(context.Background(), userID, domain.ImportTargetSales)
	if err != nil || !found {
		t.Fatalf("mapping not saved: %v", err)
	}
	if saved["product_name"] != "Item name" {
		t.Fatalf("saved = %v", saved)
	}
}
