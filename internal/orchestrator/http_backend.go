package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfolsen/brewstock/internal/domain"
	"github.com/mfolsen/brewstock/internal/idempotency"
)

// HTTPBackend implements Backend against the import HTTP API. All file
// endpoints speak multipart form data; mapping sync is plain JSON.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend targets the API mounted under baseURL, e.g.
// "http://localhost:8080/api".
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (b *HTTPBackend) ExtractHeaders(ctx context.Context, userID uuid.UUID, file idempotency.FileInfo) ([]string, error) {
	var payload struct {
		Headers []string `json:"headers"`
	}
	fields := map[string]string{"userId": userID.String()}
	if err := b.postUpload(ctx, "/imports/headers", file, fields, &payload); err != nil {
		return nil, err
	}
	return payload.Headers, nil
}

func (b *HTTPBackend) Preview(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, file idempotency.FileInfo, m domain.FieldMapping) (domain.ImportPreview, error) {
	mappingJSON, err := json.Marshal(m)
	if err != nil {
		return domain.ImportPreview{}, fmt.Errorf("encode mapping: %w", err)
	}

	var preview domain.ImportPreview
	fields := map[string]string{
		"userId":  userID.String(),
		"target":  string(target),
		"mapping": string(mappingJSON),
	}
	if err := b.postUpload(ctx, "/imports/preview", file, fields, &preview); err != nil {
		return domain.ImportPreview{}, err
	}
	return preview, nil
}

func (b *HTTPBackend) Commit(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, file idempotency.FileInfo, m domain.FieldMapping, key string) (domain.CommitResult, error) {
	mappingJSON, err := json.Marshal(m)
	if err != nil {
		return domain.CommitResult{}, fmt.Errorf("encode mapping: %w", err)
	}

	var result domain.CommitResult
	fields := map[string]string{
		"userId":         userID.String(),
		"target":         string(target),
		"mapping":        string(mappingJSON),
		"idempotencyKey": key,
	}
	if err := b.postUpload(ctx, "/imports/commit", file, fields, &result); err != nil {
		return domain.CommitResult{}, err
	}
	return result, nil
}

func (b *HTTPBackend) SyncMapping(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, m domain.FieldMapping) error {
	type entry struct {
		LogicalField string `json:"logicalField"`
		RawHeader    string `json:"rawHeader"`
	}
	payload := struct {
		UserID   string              `json:"userId"`
		Target   domain.ImportTarget `json:"target"`
		Mappings []entry             `json:"mappings"`
	}{UserID: userID.String(), Target: target}
	for field, header := range m {
		payload.Mappings = append(payload.Mappings, entry{LogicalField: field, RawHeader: header})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mapping payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/mappings", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	return nil
}

// postUpload sends the shared multipart form and decodes a JSON response
// into out.
func (b *HTTPBackend) postUpload(ctx context.Context, path string, file idempotency.FileInfo, fields map[string]string, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return err
	}
	if _, err := part.Write(file.Bytes); err != nil {
		return err
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeAPIError turns an error response body into a plain error carrying
// the server's message text.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return fmt.Errorf("%s", payload.Message)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
